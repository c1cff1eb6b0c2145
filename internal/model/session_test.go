package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeSessionRequest_Defaults(t *testing.T) {
	req, err := DecodeSessionRequest([]byte(`{"amount":1000}`))
	if err != nil {
		t.Fatalf("DecodeSessionRequest() error = %v", err)
	}

	want := SessionRequest{Amount: 1000, Currency: "AED", CountryCode: "AE"}
	if req != want {
		t.Errorf("request = %+v, want %+v", req, want)
	}
}

func TestDecodeSessionRequest_ExplicitFields(t *testing.T) {
	body := `{"amount":2500,"currency":"EUR","countryCode":"NL","returnUrl":"https://shop.example.com/done"}`
	req, err := DecodeSessionRequest([]byte(body))
	if err != nil {
		t.Fatalf("DecodeSessionRequest() error = %v", err)
	}

	want := SessionRequest{
		Amount:      2500,
		Currency:    "EUR",
		CountryCode: "NL",
		ReturnURL:   "https://shop.example.com/done",
	}
	if req != want {
		t.Errorf("request = %+v, want %+v", req, want)
	}
}

func TestDecodeSessionRequest_Amount(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr error
	}{
		{"integer", `{"amount":1000}`, 1000, nil},
		{"fraction truncated", `{"amount":12.9}`, 12, nil},
		{"negative fraction truncated toward zero", `{"amount":-7.5}`, -7, nil},
		{"exponent", `{"amount":1e3}`, 1000, nil},
		{"numeric string", `{"amount":"1500"}`, 1500, nil},
		{"decimal string", `{"amount":"12.9"}`, 12, nil},
		{"string with suffix", `{"amount":" 42abc"}`, 42, nil},
		{"zero string is present", `{"amount":"0"}`, 0, nil},
		{"missing", `{"currency":"EUR"}`, 0, ErrMissingAmount},
		{"empty body", ``, 0, ErrMissingAmount},
		{"array body", `[1000]`, 0, ErrMissingAmount},
		{"null", `{"amount":null}`, 0, ErrMissingAmount},
		{"zero", `{"amount":0}`, 0, ErrMissingAmount},
		{"empty string", `{"amount":""}`, 0, ErrMissingAmount},
		{"false", `{"amount":false}`, 0, ErrMissingAmount},
		{"true", `{"amount":true}`, 0, ErrInvalidAmount},
		{"letters", `{"amount":"abc"}`, 0, ErrInvalidAmount},
		{"object", `{"amount":{"value":1}}`, 0, ErrInvalidAmount},
		{"array", `{"amount":[1]}`, 0, ErrInvalidAmount},
		{"overflow", `{"amount":1e30}`, 0, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeSessionRequest([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSessionRequest() error = %v", err)
			}
			if req.Amount != tt.want {
				t.Errorf("Amount = %d, want %d", req.Amount, tt.want)
			}
		})
	}
}

func TestDecodeSessionRequest_Malformed(t *testing.T) {
	for _, body := range []string{
		`{"amount":`,
		`{"amount":1}trailing`,
		`[1,`,
		`"1000"`,
		`null`,
		`42`,
		`{"amount":1,"currency":5}`,
		`{"amount":1,"returnUrl":{}}`,
	} {
		_, err := DecodeSessionRequest([]byte(body))
		if !errors.Is(err, ErrMalformedBody) {
			t.Errorf("body %s: error = %v, want ErrMalformedBody", body, err)
		}
	}
}

func TestDecodeSessionRequest_ExplicitEmptyFieldsKept(t *testing.T) {
	req, err := DecodeSessionRequest([]byte(`{"amount":5,"currency":"","countryCode":null,"returnUrl":""}`))
	if err != nil {
		t.Fatalf("DecodeSessionRequest() error = %v", err)
	}

	if req.Currency != "" {
		t.Errorf("Currency = %q, want explicit empty value kept", req.Currency)
	}
	if req.CountryCode != "" {
		t.Errorf("CountryCode = %q, want explicit null kept as empty", req.CountryCode)
	}
	if req.ReturnURL != "" {
		t.Errorf("ReturnURL = %q, want empty", req.ReturnURL)
	}
}

func TestUpstreamSessionRequest_JSON(t *testing.T) {
	body, err := json.Marshal(UpstreamSessionRequest{
		MerchantAccount: "AcmeECOM",
		Amount:          Amount{Value: 1000, Currency: "AED"},
		ReturnURL:       "https://shop.example.com",
		Reference:       "ref_1_2",
		CountryCode:     "AE",
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"merchantAccount":"AcmeECOM","amount":{"value":1000,"currency":"AED"},"returnUrl":"https://shop.example.com","reference":"ref_1_2","countryCode":"AE"}`
	if string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestRawJSON(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte(`{"id":"CS1"}`), `{"id":"CS1"}`},
		{[]byte("Bad Gateway"), `"Bad Gateway"`},
		{nil, "null"},
	}
	for _, tt := range tests {
		if got := string(RawJSON(tt.in)); got != tt.want {
			t.Errorf("RawJSON(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestErrorResponse_OmitsEmptyFields(t *testing.T) {
	body, err := json.Marshal(ErrorResponse{Error: "Amount is required", Code: CodeMissingAmount})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if want := `{"error":"Amount is required","code":"MISSING_AMOUNT"}`; string(body) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}
