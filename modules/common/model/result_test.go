package model

import (
	"errors"
	"testing"
)

func TestVendorResultExclusivity(t *testing.T) {
	results := []VendorResult{
		OkImage([]byte{1, 2, 3}),
		OkImage([]byte{1}).WithArtifact(Artifact{Path: "out.jpg"}),
		OkTask("T1"),
		Refused(RefusalContentOther, "blocked"),
		Refused("", "no reason"),
		Failed(FailureTimeout, "deadline"),
		Refused(RefusalSafety, "x").WithArtifact(Artifact{Path: "never.jpg"}),
	}

	for _, r := range results {
		populated := 0
		if len(r.Image()) > 0 {
			populated++
		}
		if r.TaskHandle() != "" {
			populated++
		}
		if r.RefusalReason() != "" {
			populated++
		}
		if r.Failure() != "" {
			populated++
		}
		if populated != 1 {
			t.Fatalf("%s: expected exactly one populated variant, got %d", r.Kind(), populated)
		}
		if len(r.Image()) > 0 && r.RefusalReason() != "" {
			t.Fatalf("%s: image bytes and refusal populated together", r.Kind())
		}
		if !r.IsImage() && r.Artifact() != nil {
			t.Fatalf("%s: artifact attached to non-image result", r.Kind())
		}
	}
}

func TestOkImageEmptyBecomesNoImage(t *testing.T) {
	r := OkImage(nil)
	if !r.IsFailed() || r.Failure() != FailureNoImage {
		t.Fatalf("expected no_image failure, got %s/%s", r.Kind(), r.Failure())
	}
}

func TestVendorResultErrTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		result VendorResult
		want   error
	}{
		{"refusal", Refused(RefusalContentOther, "IMAGE_OTHER"), ErrVendorRefusal},
		{"credentials", Failed(FailureCredentials, "missing key"), ErrCredential},
		{"input", Failed(FailureInput, "no reference"), ErrInput},
		{"timeout", Failed(FailureTimeout, "deadline"), ErrVendorTransient},
		{"no image", Failed(FailureNoImage, "empty"), ErrVendorTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.result.Err()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if OkImage([]byte{1}).Err() != nil || OkTask("T").Err() != nil {
		t.Fatalf("success variants must not carry an error")
	}
}

func TestUserMessageHidesInternals(t *testing.T) {
	err := WrapTransient(errors.New("dial tcp 10.0.0.1:443: i/o timeout"), "gemini call")
	if msg := UserMessage(err); msg != FailureUserMessage {
		t.Fatalf("expected generic failure message, got %q", msg)
	}
	if msg := UserMessage(Refused(RefusalSafety, "SAFETY").Err()); msg != RefusalUserMessage {
		t.Fatalf("expected refusal message, got %q", msg)
	}
	if msg := UserMessage(NewInputError("duration must be 5 or 10")); msg != "duration must be 5 or 10" {
		t.Fatalf("expected input message passthrough, got %q", msg)
	}
}

func TestParseRegion(t *testing.T) {
	if ParseRegion("Lower-Body") != RegionLower || ParseRegion("upper") != RegionUpper || ParseRegion("") != RegionFull {
		t.Fatalf("unexpected region parsing")
	}
}
