package lwm2m

import (
	"errors"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PathKey
		wantErr bool
	}{
		{name: "object", input: "/3", want: PathKey{3, Unset, Unset}},
		{name: "instance", input: "/3/0", want: PathKey{3, 0, Unset}},
		{name: "resource", input: "/3/0/1", want: PathKey{3, 0, 1}},
		{name: "no leading slash", input: "5/0/3", want: PathKey{5, 0, 3}},
		{name: "trailing slash", input: "/3/0/", want: PathKey{3, 0, Unset}},
		{name: "surrounding spaces", input: " /1/0/1 ", want: PathKey{1, 0, 1}},
		{name: "empty", input: "", wantErr: true},
		{name: "root only", input: "/", wantErr: true},
		{name: "non numeric", input: "/3/a/1", wantErr: true},
		{name: "negative", input: "/3/-1/1", wantErr: true},
		{name: "too deep", input: "/3/0/1/2", wantErr: true},
		{name: "double slash", input: "/3//1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPath) {
					t.Fatalf("ParsePath(%q) error = %v, want ErrMalformedPath", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePath(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathKeyKinds(t *testing.T) {
	obj := MustParsePath("/3")
	inst := MustParsePath("/3/0")
	res := MustParsePath("/3/0/9")

	if !obj.IsObject() || obj.IsInstance() || obj.IsResource() {
		t.Errorf("/3 kinds wrong: object=%v instance=%v resource=%v", obj.IsObject(), obj.IsInstance(), obj.IsResource())
	}
	if inst.IsObject() || !inst.IsInstance() || inst.IsResource() {
		t.Errorf("/3/0 kinds wrong: object=%v instance=%v resource=%v", inst.IsObject(), inst.IsInstance(), inst.IsResource())
	}
	if res.IsObject() || res.IsInstance() || !res.IsResource() {
		t.Errorf("/3/0/9 kinds wrong: object=%v instance=%v resource=%v", res.IsObject(), res.IsInstance(), res.IsResource())
	}
	if res.Instance() != inst {
		t.Errorf("Instance() = %v, want %v", res.Instance(), inst)
	}
}

func TestPathKeyString(t *testing.T) {
	for _, s := range []string{"/3", "/3/0", "/3/0/1", "/10241/12/0"} {
		if got := MustParsePath(s).String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
	if got := MustParsePath("3/0/1").String(); got != "/3/0/1" {
		t.Errorf("canonical String() = %q, want /3/0/1", got)
	}
}

func TestPathKeyContains(t *testing.T) {
	tests := []struct {
		parent, child string
		want          bool
	}{
		{"/3", "/3/0/1", true},
		{"/3/0", "/3/0/1", true},
		{"/3/0", "/3/1/1", false},
		{"/3/0/1", "/3/0/1", true},
		{"/3/0/1", "/3/0/2", false},
		{"/4", "/3/0/1", false},
	}
	for _, tt := range tests {
		if got := MustParsePath(tt.parent).Contains(MustParsePath(tt.child)); got != tt.want {
			t.Errorf("%s.Contains(%s) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
