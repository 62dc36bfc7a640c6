package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

func minimalDocument(body string) []byte {
	return []byte(header + body)
}

const validBody = `<EFilingBatchXML FormTypeCode="RRE" ActivityCount="1" PartyCount="5" PaymentCount="1">
  <Activity SeqNum="1">
    <Party SeqNum="2"><ActivityPartyTypeCode>35</ActivityPartyTypeCode><PartyName SeqNum="3"><RawEntityIndividualLastName>Acme</RawEntityIndividualLastName></PartyName>
      <PartyIdentification SeqNum="4"><PartyIdentificationTypeCode>4</PartyIdentificationTypeCode><PartyIdentificationNumberText>123456789</PartyIdentificationNumberText></PartyIdentification>
      <PartyIdentification SeqNum="5"><PartyIdentificationTypeCode>28</PartyIdentificationTypeCode><PartyIdentificationNumberText>PRRE1234</PartyIdentificationNumberText></PartyIdentification>
    </Party>
    <Party SeqNum="6"><ActivityPartyTypeCode>37</ActivityPartyTypeCode><PartyName SeqNum="7"><RawEntityIndividualLastName>Dana</RawEntityIndividualLastName></PartyName></Party>
    <Party SeqNum="8"><ActivityPartyTypeCode>30</ActivityPartyTypeCode><PartyName SeqNum="9"><RawEntityIndividualLastName>Acme</RawEntityIndividualLastName></PartyName></Party>
    <Party SeqNum="10"><ActivityPartyTypeCode>67</ActivityPartyTypeCode><PartyName SeqNum="11"><RawEntityIndividualLastName>Lakeview</RawEntityIndividualLastName></PartyName></Party>
    <Party SeqNum="12"><ActivityPartyTypeCode>68</ActivityPartyTypeCode><PartyName SeqNum="13"><RawEntityIndividualLastName>Ellis</RawEntityIndividualLastName></PartyName></Party>
    <Property SeqNum="14"><Address SeqNum="15"><RawStreetAddress1Text>42 Lakeview Dr</RawStreetAddress1Text></Address></Property>
    <Payment SeqNum="16"><PaymentMethodCode>wire</PaymentMethodCode><PaymentAmountText>10.00</PaymentAmountText></Payment>
  </Activity>
</EFilingBatchXML>`

func TestCheckDocument_AcceptsMinimalValidDocument(t *testing.T) {
	assert.Empty(t, checkDocument(minimalDocument(validBody)))
}

func TestCheckDocument_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "not well formed",
			body:   `<EFilingBatchXML><Activity></EFilingBatchXML>`,
			reason: "document is not well-formed",
		},
		{
			name:   "wrong root",
			body:   `<Batch/>`,
			reason: `root element is "Batch", expected "EFilingBatchXML"`,
		},
		{
			name:   "missing transferor",
			body:   strings.Replace(validBody, "<ActivityPartyTypeCode>68</ActivityPartyTypeCode>", "<ActivityPartyTypeCode>67</ActivityPartyTypeCode>", 1),
			reason: "activity 1 is missing mandated party role 68",
		},
		{
			name:   "transmitter without tcc",
			body:   strings.Replace(validBody, "<PartyIdentificationTypeCode>28</PartyIdentificationTypeCode>", "<PartyIdentificationTypeCode>999</PartyIdentificationTypeCode>", 1),
			reason: "activity 1 transmitter lacks a transmission control code",
		},
		{
			name:   "duplicate seqnum",
			body:   strings.Replace(validBody, `<Payment SeqNum="16">`, `<Payment SeqNum="15">`, 1),
			reason: "SeqNum 15 is not unique",
		},
		{
			name:   "gap in seqnum",
			body:   strings.Replace(validBody, `<Payment SeqNum="16">`, `<Payment SeqNum="17">`, 1),
			reason: "SeqNum sequence breaks at position 16: expected 16, got 17",
		},
		{
			name:   "party count mismatch",
			body:   strings.Replace(validBody, `PartyCount="5"`, `PartyCount="4"`, 1),
			reason: "declared PartyCount 4 does not match 5 parties",
		},
		{
			name:   "payment count mismatch",
			body:   strings.Replace(validBody, `PaymentCount="1"`, `PaymentCount="2"`, 1),
			reason: "declared PaymentCount 2 does not match 1 payments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons := checkDocument(minimalDocument(tt.body))
			require.NotEmpty(t, reasons)
			found := false
			for _, r := range reasons {
				if strings.HasPrefix(r, tt.reason) {
					found = true
				}
			}
			assert.True(t, found, "expected %q in %v", tt.reason, reasons)
		})
	}
}

func TestValidate_ReturnsStructuralPreflightError(t *testing.T) {
	err := Validate([]byte("not xml at all"))
	require.Error(t, err)
	var pe *PreflightError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageStructural, pe.Stage)
}
