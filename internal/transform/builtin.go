package transform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func laCode(meta types.Metadata, _ any, _ frame.Row) (any, error) {
	if meta.LACode == "" {
		return nil, fmt.Errorf("no authority code")
	}
	return meta.LACode, nil
}

func (r *Registry) laName(meta types.Metadata, _ any, _ frame.Row) (any, error) {
	if meta.LAName != "" {
		return meta.LAName, nil
	}
	name := r.authorities.Name(meta.LACode)
	if name == "" {
		return nil, fmt.Errorf("unknown authority %q", meta.LACode)
	}
	return name, nil
}

func year(meta types.Metadata, _ any, _ frame.Row) (any, error) {
	if meta.Year == 0 {
		return nil, fmt.Errorf("no year")
	}
	return int64(meta.Year), nil
}

func addLASuffix(meta types.Metadata, v any, _ frame.Row) (any, error) {
	if isNull(v) {
		return v, nil
	}
	if meta.LACode == "" {
		return nil, fmt.Errorf("no authority code")
	}
	return frame.FormatValue(v) + "_" + meta.LACode, nil
}

func firstOfMonth(_ types.Metadata, v any, _ frame.Row) (any, error) {
	if isNull(v) {
		return v, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected a date, got %T", v)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()), nil
}

func shortPostcode(_ types.Metadata, v any, _ frame.Row) (any, error) {
	if isNull(v) {
		return v, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected a postcode, got %T", v)
	}
	pc, err := schema.NormalisePostcode(s)
	if err != nil {
		return nil, err
	}
	return pc[:len(pc)-2], nil
}

// HashSWE returns a degrade function replacing a workforce identifier with
// the hex HMAC-SHA256 of its text under secret. An empty secret still hashes.
func HashSWE(secret []byte) Func {
	return func(_ types.Metadata, v any, _ frame.Row) (any, error) {
		if isNull(v) {
			return v, nil
		}
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(frame.FormatValue(v)))
		return hex.EncodeToString(mac.Sum(nil)), nil
	}
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
