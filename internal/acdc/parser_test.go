package acdc

import "testing"

func validCredentialJSON() string {
	return `{
		"v":"ACDC10JSON00011a_",
		"d":"EAbCdEfGhIjKlMnOpQrStUvWxYz0123456789ABCDEFG",
		"i":"EIssuerAID000000000000000000000000000000000",
		"ri":"ERegistry00000000000000000000000000000000000",
		"s":"ESchema000000000000000000000000000000000000",
		"a":{
			"d":"EAttrSaid000000000000000000000000000000000",
			"i":"EHolderAID00000000000000000000000000000000",
			"dt":"2025-01-01T00:00:00Z",
			"LEI":"5493001KJTIIGC8Y1R12"
		},
		"e":{"d":"EEndorseSaid000000000000000000000000000000"},
		"r":{"d":"ERulesSaid0000000000000000000000000000000"}
	}`
}

func TestParseBareJSONCredential(t *testing.T) {
	pc, err := Parse([]byte(validCredentialJSON()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !pc.AllSAIDsValid {
		t.Fatalf("expected all SAIDs valid, errors: %v", pc.StructuralErrors)
	}
	if len(pc.StructuralErrors) != 0 {
		t.Fatalf("unexpected structural errors: %v", pc.StructuralErrors)
	}
	if pc.Credential.A.LEI != "5493001KJTIIGC8Y1R12" {
		t.Fatalf("unexpected LEI: %s", pc.Credential.A.LEI)
	}
}

func TestParseMissingFieldsStillReturnsCredential(t *testing.T) {
	pc, err := Parse([]byte(`{"v":"ACDC10JSON00011a_","d":"EShort000000000000001","a":{},"e":{},"r":{}}`))
	if err != nil {
		t.Fatalf("Parse should not hard-fail on missing fields: %v", err)
	}
	if len(pc.StructuralErrors) == 0 {
		t.Fatal("expected structural errors for missing required fields")
	}
	if pc.Credential.D != "EShort000000000000001" {
		t.Fatal("extractable fields should still be populated")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected parse error for invalid JSON")
	}
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Kind != KindInvalidJSON {
		t.Fatalf("expected KindInvalidJSON, got %s", pe.Kind)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func TestValidateAllSAIDsOptionalLEIDoesNotBreakValidation(t *testing.T) {
	cred := Credential{
		D:  "EAbCdEfGhIjKlMnOpQrStUvWxYz0123456789ABCDEFG",
		I:  "EIssuerAID000000000000000000000000000000000",
		RI: "ERegistry00000000000000000000000000000000000",
		S:  "ESchema000000000000000000000000000000000000",
		A: Attributes{
			D: "EAttrSaid000000000000000000000000000000000",
			I: "EHolderAID00000000000000000000000000000000",
		},
		E: Endorsement{D: "EEndorseSaid000000000000000000000000000000"},
		R: Rules{D: "ERulesSaid0000000000000000000000000000000"},
	}
	if !ValidateAllSAIDs(cred) {
		t.Fatal("expected SAIDs to validate even without LEI present")
	}
}

func TestValidateSAIDShapeStrictAndRelaxed(t *testing.T) {
	strict := "EAbCdEfGhIjKlMnOpQrStUvWxYz0123456789ABCDEFG" // E + 43 chars
	relaxed := "E" + "abcdefghijklmnopqrst"                  // E + 20 chars
	tooShort := "E" + "abcdefghijklmnop"                     // E + 16 chars

	if !ValidateSAIDShape(strict) {
		t.Error("strict 44-char SAID should validate")
	}
	if !ValidateSAIDShape(relaxed) {
		t.Error("relaxed >=21-char SAID should validate")
	}
	if ValidateSAIDShape(tooShort) {
		t.Error("too-short SAID should not validate")
	}
	if ValidateSAIDShape("XnotAnE00000000000000000000000000000000000") {
		t.Error("SAID must start with E")
	}
}
