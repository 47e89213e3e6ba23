package statsdto

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_WrappedErrors(t *testing.T) {
	base := NotFound("player not found")
	wrapped := fmt.Errorf("query failed: %w", base)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("kind = %s, want not_found through the wrap", KindOf(wrapped))
	}
}

func TestKindOf_UnknownErrorsDefaultToUnavailable(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUpstreamUnavailable {
		t.Fatal("untyped errors must classify as upstream unavailability")
	}
}

func TestIsKind(t *testing.T) {
	if IsKind(nil, KindNoData) {
		t.Fatal("nil error carries no kind")
	}
	if !IsKind(RateLimited("slow down"), KindRateLimited) {
		t.Fatal("rate limited error not recognized")
	}
	if IsKind(RateLimited("slow down"), KindNotFound) {
		t.Fatal("kind mismatch not detected")
	}
}

func TestQueryError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Unavailable("upstream request failed", cause)
	if err.Error() != "upstream request failed" {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost through Unwrap")
	}

	bare := &QueryError{Kind: KindCancelled}
	if bare.Error() != string(KindCancelled) {
		t.Fatalf("fallback message = %q", bare.Error())
	}
}
