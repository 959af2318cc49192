package price

import (
	"encoding/json"
	"testing"
)

func TestPriceUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{"zero", `"0"`, 0, false},
		{"one", `"1"`, 1_000_000, false},
		{"half", `"0.5"`, 500_000, false},
		{"quarter", `"0.25"`, 250_000, false},
		{"typical price", `"0.123456"`, 123_456, false},
		{"needs padding 1 digit", `"0.1"`, 100_000, false},
		{"needs padding 2 digits", `"0.12"`, 120_000, false},
		{"needs padding 3 digits", `"0.123"`, 123_000, false},
		{"needs truncation", `"0.1234567"`, 123_456, false},
		{"raw number no quotes", `0.25`, 250_000, false},
		{"whole with frac", `"1.5"`, 1_500_000, false},
		{"two whole", `"2.0"`, 2_000_000, false},
		{"small frac", `"0.000001"`, 1, false},
		{"max precision", `"0.999999"`, 999_999, false},
		{"btc ticker", `"67890.12000000"`, 67_890_120_000, false},
		{"empty", `""`, 0, true},
		{"letters", `"abc"`, 0, true},
		{"bad fraction", `"1.2x"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Price
			err := got.UnmarshalJSON([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriceUnmarshalJSON_ViaJsonUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Price
	}{
		{"quoted string", `"0.5"`, 500_000},
		{"raw number", `0.75`, 750_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Price
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriceInStruct(t *testing.T) {
	type Order struct {
		Price Price `json:"price"`
	}

	input := `{"price": "0.75"}`
	var o Order
	if err := json.Unmarshal([]byte(input), &o); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if o.Price != 750_000 {
		t.Errorf("got %d, want 750000", o.Price)
	}
}

func TestPriceConversions(t *testing.T) {
	p := Price(67_890_125_000)
	if got := p.String(); got != "67890.125" {
		t.Errorf("String() = %s, want 67890.125", got)
	}
	if got := p.Float64(); got != 67890.125 {
		t.Errorf("Float64() = %v, want 67890.125", got)
	}
	if got := FromFloat(42123.45); got != Price(42_123_450_000) {
		t.Errorf("FromFloat(42123.45) = %d", got)
	}
	if got := FromFloat(0.0000005); got != Price(1) {
		t.Errorf("FromFloat(0.0000005) = %d, want 1", got)
	}
}

func BenchmarkPriceUnmarshalJSON(b *testing.B) {
	data := []byte(`"0.123456"`)
	var p Price

	for i := 0; i < b.N; i++ {
		_ = p.UnmarshalJSON(data)
	}
}
