// Package config handles loading and validating the sync service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LWM2MSYNC_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/lwm2msync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Engine.DiscoveryTimeout)
package config
