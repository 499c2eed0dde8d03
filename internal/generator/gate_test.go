package generator

import (
	"strings"
	"testing"
)

func TestVetDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		description  string
		wantOK       bool
		wantGuidance string
	}{
		{
			name:         "plain greeting is rejected",
			description:  "hello there",
			wantOK:       false,
			wantGuidance: guidanceOffTopic,
		},
		{
			name:        "network request is accepted",
			description: "create a vpc with two subnets",
			wantOK:      true,
		},
		{
			name:        "compute request is accepted",
			description: "create an EC2 instance with a security group",
			wantOK:      true,
		},
		{
			name:         "below minimum length",
			description:  "vpc now",
			wantOK:       false,
			wantGuidance: guidanceTooShort,
		},
		{
			name:        "exactly minimum length",
			description: "vpc please",
			wantOK:      true,
		},
		{
			name:        "exactly maximum length",
			description: "create a vpc " + strings.Repeat("x", 987),
			wantOK:      true,
		},
		{
			name:         "above maximum length",
			description:  "create a vpc " + strings.Repeat("x", 988),
			wantOK:       false,
			wantGuidance: guidanceTooLong,
		},
		{
			name:        "keyword match is case-insensitive",
			description: "DEPLOY A KUBERNETES CLUSTER",
			wantOK:      true,
		},
		{
			name:         "long but off-topic",
			description:  "write me a poem about the sea and the sky",
			wantOK:       false,
			wantGuidance: guidanceOffTopic,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			guidance, ok := vetDescription(tc.description)
			if ok != tc.wantOK {
				t.Fatalf("vetDescription(%q) ok = %v, want %v", tc.description, ok, tc.wantOK)
			}
			if guidance != tc.wantGuidance {
				t.Fatalf("vetDescription(%q) guidance = %q, want %q", tc.description, guidance, tc.wantGuidance)
			}
		})
	}
}

func TestVetDescriptionIsDeterministic(t *testing.T) {
	t.Parallel()

	for i := 0; i < 3; i++ {
		if _, ok := vetDescription("hello there"); ok {
			t.Fatal("greeting accepted on repeat invocation")
		}
		if _, ok := vetDescription("create a vpc with two subnets"); !ok {
			t.Fatal("infrastructure request rejected on repeat invocation")
		}
	}
}
