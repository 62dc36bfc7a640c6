// Package filingtest provides fixtures shared by the filing package tests.
package filingtest

import (
	"time"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
)

// ValidRecord returns a complete record: one entity buyer, one individual
// seller and one wire payment.
func ValidRecord(recordID id.RecordID) *models.TransactionRecord {
	return &models.TransactionRecord{
		ID: recordID,
		Transmitter: models.Transmitter{
			Name:      "Acme Title Services LLC",
			TIN:       "12-3456789",
			TCC:       "PRRE1234",
			AccountID: "ACME01",
			Address: models.Address{
				Street: "100 Congress Ave", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
			},
			Contact: models.Contact{Name: "Dana Reyes", Phone: "(512) 555-0100"},
		},
		ReportingPersons: []models.ReportingPerson{{
			Designation: models.DesignationClosingAgent,
			Name:        "Acme Title Services LLC",
			TIN:         "123456789",
			Address: models.Address{
				Street: "100 Congress Ave", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
			},
		}},
		Property: models.Property{
			Address: models.Address{
				Street: "42 Lakeview Dr", City: "Austin", State: "TX", PostalCode: "78732", Country: "US",
			},
			ParcelNumber: "0123-4567",
		},
		Buyers: []models.Party{{
			Kind:       models.PartyEntity,
			EntityName: "Lakeview Holdings LLC",
			TIN:        "987654321",
			Address: models.Address{
				Street: "9 Harbor Rd", City: "Wilmington", State: "DE", PostalCode: "19801", Country: "US",
			},
		}},
		Sellers: []models.Party{{
			Kind:      models.PartyIndividual,
			FirstName: "Morgan",
			LastName:  "Ellis",
			Address: models.Address{
				Street: "42 Lakeview Dr", City: "Austin", State: "TX", PostalCode: "78732", Country: "US",
			},
		}},
		Payments: []models.PaymentSource{{
			Method:      models.PaymentWire,
			AmountCents: 125_000_000,
			Institution: "First Federal Bank",
			PayerName:   "Lakeview Holdings LLC",
		}},
		ClosingDate:        time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		TotalConsideration: 125_000_000,
	}
}

// AcceptedMessages is a messages blob with no errors or warnings.
func AcceptedMessages() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<EFilingSubmissionXML SubmissionStatusCode="A">
</EFilingSubmissionXML>
`)
}

// RejectedMessages is a messages blob carrying one fatal error.
func RejectedMessages(code, message string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<EFilingSubmissionXML SubmissionStatusCode="R">
  <EFilingSubmissionErrorXML SeqNum="1">
    <ErrorLevelText>FATAL</ErrorLevelText>
    <ErrorTypeCode>` + code + `</ErrorTypeCode>
    <ErrorText>` + message + `</ErrorText>
    <ErrorElementNameText>PartyIdentificationNumberText</ErrorElementNameText>
  </EFilingSubmissionErrorXML>
</EFilingSubmissionXML>
`)
}

// WarningMessages is a messages blob accepted with one warning.
func WarningMessages(code, message string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<EFilingSubmissionXML SubmissionStatusCode="A_W">
  <EFilingSubmissionErrorXML SeqNum="1">
    <ErrorLevelText>WARN</ErrorLevelText>
    <ErrorTypeCode>` + code + `</ErrorTypeCode>
    <ErrorText>` + message + `</ErrorText>
  </EFilingSubmissionErrorXML>
</EFilingSubmissionXML>
`)
}

// Receipt is an acknowledgement blob assigning receiptID to line 1.
func Receipt(receiptID string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<EFilingAcknowledgementXML ReceiptDateTimeText="2026-01-16T14:05:00Z">
  <Activity SeqNum="1">
    <BSAID>` + receiptID + `</BSAID>
  </Activity>
</EFilingAcknowledgementXML>
`)
}
