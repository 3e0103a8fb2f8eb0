package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/kbenali/resto-backend/pkg/errors"
)

type samplePayload struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"flour","quantity":2}`))

	var payload samplePayload
	if err := DecodeJSONBody(r, &payload); err != nil {
		t.Fatalf("DecodeJSONBody: %v", err)
	}
	if payload.Name != "flour" || payload.Quantity != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDecodeJSONBodyRejectsMalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))

	var payload samplePayload
	err := DecodeJSONBody(r, &payload)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"flour","quantity":1,"extra":true}`))

	var payload samplePayload
	err := DecodeJSONBody(r, &payload)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":0}`))

	var payload samplePayload
	err := DecodeJSONBody(r, &payload)
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := appErr.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", appErr.Details())
	}
	if _, ok := details["name"]; !ok {
		t.Fatalf("expected json field name in details, got %v", details)
	}
	if _, ok := details["quantity"]; !ok {
		t.Fatalf("expected quantity in details, got %v", details)
	}
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=50", nil)
	got, err := ParseQueryInt(r, "limit", 25, 1, 100)
	if err != nil {
		t.Fatalf("ParseQueryInt: %v", err)
	}
	if got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestParseQueryIntDefaultsWhenAbsent(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	got, err := ParseQueryInt(r, "limit", 25, 1, 100)
	if err != nil {
		t.Fatalf("ParseQueryInt: %v", err)
	}
	if got != 25 {
		t.Fatalf("expected default 25, got %d", got)
	}
}

func TestParseQueryIntRejectsBadValues(t *testing.T) {
	for _, query := range []string{"limit=abc", "limit=0", "limit=101"} {
		r := httptest.NewRequest("GET", "/?"+query, nil)
		if _, err := ParseQueryInt(r, "limit", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", query, err)
		}
	}
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	got, err := ParsePathUUID(id.String(), "order_id")
	if err != nil {
		t.Fatalf("ParsePathUUID: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	if _, err := ParsePathUUID("not-a-uuid", "order_id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
