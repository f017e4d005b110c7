package nxapi

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const runningConfig = `
!Command: show running-config ipqos
!Time: Sun Aug 23 10:00:00 2026

version 10.2(3)

class-map type qos match-all C1
  match access-group name ACL_A

policy-map type qos PM1
  class C1
    set dscp ef
  class class-default

interface Ethernet1/1
  service-policy type qos input PM1
`

func TestExtractBlock(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{
			name:   "class map",
			header: "class-map type qos match-all C1",
			want: []string{
				"class-map type qos match-all C1",
				"  match access-group name ACL_A",
			},
		},
		{
			name:   "policy map keeps nested lines",
			header: "policy-map type qos PM1",
			want: []string{
				"policy-map type qos PM1",
				"  class C1",
				"    set dscp ef",
				"  class class-default",
			},
		},
		{
			name:   "interface",
			header: "interface Ethernet1/1",
			want: []string{
				"interface Ethernet1/1",
				"  service-policy type qos input PM1",
			},
		},
		{
			name:   "absent resource",
			header: "policy-map type qos PM_MISSING",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractBlock(runningConfig, tt.header)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractBlock(%q) mismatch (-want +got):\n%s", tt.header, diff)
			}
		})
	}
}

// A class-map compiled as match-any may already exist on the device as
// match-all; the prefix matcher still has to find it.
func TestExtractBlockFunc_MatchModeDrift(t *testing.T) {
	got := ExtractBlockFunc(runningConfig, func(line string) bool {
		return strings.HasPrefix(line, "class-map type qos ") && strings.HasSuffix(line, " C1")
	})
	if len(got) != 2 || got[0] != "class-map type qos match-all C1" {
		t.Errorf("ExtractBlockFunc() = %v", got)
	}
}

func TestNormalize(t *testing.T) {
	in := []string{
		"  10 permit tcp   10.0.0.0/8 any eq 443",
		"",
		"class-map type qos match-any C1 ",
	}
	want := []string{
		"10 permit tcp 10.0.0.0/8 any eq 443",
		"class-map type qos match-any C1",
	}
	if diff := cmp.Diff(want, Normalize(in)); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}
