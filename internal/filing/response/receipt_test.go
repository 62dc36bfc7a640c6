package response_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/internal/filing/filingtest"
	"rrfiler/internal/filing/response"
)

func TestParseReceipt_SingleItem(t *testing.T) {
	r, err := response.ParseReceipt(filingtest.Receipt("31000012345678"))
	require.NoError(t, err)
	assert.Equal(t, "31000012345678", r.ReceiptID)
	assert.Equal(t, time.Date(2026, 1, 16, 14, 5, 0, 0, time.UTC), r.ReceivedAt)
	assert.Equal(t, map[int]string{1: "31000012345678"}, r.Items)
}

func TestParseReceipt_BatchedItems(t *testing.T) {
	blob := []byte(`<EFilingAcknowledgementXML ReceiptDateTimeText="20260116140500">
  <Activity SeqNum="3"><BSAID>31000000000003</BSAID></Activity>
  <Activity SeqNum="1"><BSAID>31000000000001</BSAID></Activity>
</EFilingAcknowledgementXML>`)

	r, err := response.ParseReceipt(blob)
	require.NoError(t, err)
	assert.Equal(t, "31000000000001", r.ReceiptID, "lowest sequence wins without a batch id")
	assert.Len(t, r.Items, 2)
	assert.Equal(t, "31000000000003", r.Items[3])
}

func TestParseReceipt_BatchLevelIDWins(t *testing.T) {
	blob := []byte(`<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16">
  <BSAID>31000099999999</BSAID>
  <Activity SeqNum="1"><BSAID>31000000000001</BSAID></Activity>
</EFilingAcknowledgementXML>`)

	r, err := response.ParseReceipt(blob)
	require.NoError(t, err)
	assert.Equal(t, "31000099999999", r.ReceiptID)
}

func TestParseReceipt_Malformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"empty", "   "},
		{"garbage", "ACK OK"},
		{"wrong root", `<EFilingSubmissionXML/>`},
		{"missing timestamp", `<EFilingAcknowledgementXML><Activity SeqNum="1"><BSAID>31000012345678</BSAID></Activity></EFilingAcknowledgementXML>`},
		{"no identifiers", `<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16T14:05:00Z"/>`},
		{"short id", `<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16T14:05:00Z"><Activity SeqNum="1"><BSAID>3100</BSAID></Activity></EFilingAcknowledgementXML>`},
		{"duplicate sequence", `<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16T14:05:00Z"><Activity SeqNum="1"><BSAID>31000012345678</BSAID></Activity><Activity SeqNum="1"><BSAID>31000012345679</BSAID></Activity></EFilingAcknowledgementXML>`},
		{"zero sequence", `<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16T14:05:00Z"><Activity><BSAID>31000012345678</BSAID></Activity></EFilingAcknowledgementXML>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := response.ParseReceipt([]byte(tt.blob))
			require.Error(t, err)
			assert.Nil(t, r)
			var pe *response.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, response.BlobReceipt, pe.Kind)
		})
	}
}
