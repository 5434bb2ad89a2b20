package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter(bind func(ctx *gin.Context) bool) *gin.Engine {
	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		if !bind(ctx) {
			return
		}
		ctx.Status(http.StatusNoContent)
	})
	return r
}

func postBind(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, bindErrorResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp bindErrorResponse
	if w.Code != http.StatusNoContent {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := bindRouter(func(ctx *gin.Context) bool {
		var req organization.CreateOrganizationRequest
		return handlers.BindJSON(ctx, &req)
	})

	w, resp := postBind(t, r, `{"name":"x","location":{"lat":1},"perimeterRadius":0}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if resp.Error.Code != "invalid_input" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"name":            "min",
		"location.lng":    "required",
		"perimeterRadius": "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_ZeroCoordinatesAreValid(t *testing.T) {
	r := bindRouter(func(ctx *gin.Context) bool {
		var req shift.ClockRequest
		return handlers.BindJSON(ctx, &req)
	})

	w, _ := postBind(t, r, `{"location":{"lat":0,"lng":0}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusNoContent, w.Body.String())
	}
}

func TestBindJSON_SyntaxAndTypeErrors(t *testing.T) {
	r := bindRouter(func(ctx *gin.Context) bool {
		var req shift.ClockRequest
		return handlers.BindJSON(ctx, &req)
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "syntax", body: `{"location":}`, want: "invalid_json_syntax"},
		{name: "type", body: `{"location":{"lat":"north","lng":1}}`, want: "invalid_json_type"},
		{name: "empty", body: ``, want: "empty_body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postBind(t, r, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400", w.Code)
			}
			if resp.Error.Details.JSON != tt.want {
				t.Fatalf("got details.json %q, want %q", resp.Error.Details.JSON, tt.want)
			}
		})
	}
}
