package documents

import (
	"strings"
	"testing"
	"time"
)

func TestCacheValidatorShape(t *testing.T) {
	v := CacheValidator("tpl-1", time.Unix(1700000000, 0), false)
	if !strings.HasPrefix(v, `W/"`) || !strings.HasSuffix(v, `"`) {
		t.Fatalf("validator must be a weak ETag, got %q", v)
	}
	if len(v) != len(`W/""`)+16 {
		t.Fatalf("validator payload should be 16 hex chars, got %q", v)
	}
}

func TestCacheValidatorStable(t *testing.T) {
	at := time.Unix(1700000000, 123456789)
	a := CacheValidator("tpl-1", at, false)
	b := CacheValidator("tpl-1", at, false)
	if a != b {
		t.Fatalf("identical inputs must yield identical validators: %q vs %q", a, b)
	}
}

func TestCacheValidatorVariesPerInput(t *testing.T) {
	at := time.Unix(1700000000, 0)
	base := CacheValidator("tpl-1", at, false)

	if got := CacheValidator("tpl-2", at, false); got == base {
		t.Fatalf("different template id must change the validator")
	}
	if got := CacheValidator("tpl-1", at.Add(time.Nanosecond), false); got == base {
		t.Fatalf("different updated_at must change the validator")
	}
	if got := CacheValidator("tpl-1", at, true); got == base {
		t.Fatalf("degraded flag must change the validator")
	}
}
