package services

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTaxAddress(t *testing.T) {
	addr, err := NormalizeTaxAddress(TaxAddressInput{
		Street:  "  <b>123</b>   Main St\t",
		City:    "Columbia",
		State:   "south CAROLINA",
		ZipCode: "29201 1234",
		Country: "United States",
	})
	if err != nil {
		t.Fatalf("NormalizeTaxAddress: %v", err)
	}
	want := TaxAddress{Street: "123 Main St", City: "Columbia", State: "SC", Zip: "29201-1234", Country: "US"}
	if addr != want {
		t.Fatalf("expected %+v got %+v", want, addr)
	}
}

func TestNormalizeTaxAddress_LengthCaps(t *testing.T) {
	addr, err := NormalizeTaxAddress(TaxAddressInput{
		Street:  strings.Repeat("s", 150),
		City:    strings.Repeat("c", 80),
		State:   "NY",
		ZipCode: "10001",
	})
	if err != nil {
		t.Fatalf("NormalizeTaxAddress: %v", err)
	}
	if len(addr.Street) != 100 || len(addr.City) != 50 {
		t.Fatalf("expected capped lengths got street=%d city=%d", len(addr.Street), len(addr.City))
	}
	if addr.Country != "US" {
		t.Fatalf("expected default country US got %q", addr.Country)
	}
}

func TestNormalizeTaxAddress_Invalid(t *testing.T) {
	cases := []TaxAddressInput{
		{State: "Atlantis", ZipCode: "10001"},
		{State: "NY", ZipCode: "1000"},
		{State: "NY", ZipCode: "10001-12"},
		{State: "NY", ZipCode: "ABCDE"},
		{State: "ON", ZipCode: "", Country: "CA"},
	}
	for i, in := range cases {
		if _, err := NormalizeTaxAddress(in); !errors.Is(err, ErrTaxInvalidInput) {
			t.Fatalf("case %d: expected ErrTaxInvalidInput got %v", i, err)
		}
	}
}

func TestNormalizeTaxAddress_NonUS(t *testing.T) {
	addr, err := NormalizeTaxAddress(TaxAddressInput{City: "Toronto", State: "on", ZipCode: "m5v 2t6", Country: "ca"})
	if err != nil {
		t.Fatalf("NormalizeTaxAddress: %v", err)
	}
	if addr.Country != "CA" || addr.State != "ON" || addr.Zip != "M5V 2T6" {
		t.Fatalf("unexpected address %+v", addr)
	}
}

func TestNormalizeState(t *testing.T) {
	cases := map[string]string{
		"sc":                   "SC",
		"S.C.":                 "SC",
		"New  York":            "NY",
		"DISTRICT OF COLUMBIA": "DC",
		"Puerto Rico":          "PR",
	}
	for in, want := range cases {
		got, ok := NormalizeState(in)
		if !ok || got != want {
			t.Fatalf("NormalizeState(%q) = %q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := NormalizeState("ZZ"); ok {
		t.Fatalf("expected unknown code to fail")
	}
}

func TestNormalizeCountry(t *testing.T) {
	cases := map[string]string{
		"":                         "US",
		"usa":                      "US",
		"U.S.A.":                   "US",
		"United States of America": "US",
		"ca":                       "CA",
	}
	for in, want := range cases {
		if got := NormalizeCountry(in); got != want {
			t.Fatalf("NormalizeCountry(%q) = %q want %q", in, got, want)
		}
	}
}

func TestSanitizeAddressField_UnescapesEntities(t *testing.T) {
	if got := sanitizeAddressField("Smith & Sons <i>Warehouse</i>", 100); got != "Smith & Sons Warehouse" {
		t.Fatalf("unexpected sanitised value %q", got)
	}
}
