package response

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var receiptIDPattern = regexp.MustCompile(`^[0-9]{14}$`)

const receiptRoot = "EFilingAcknowledgementXML"

// Receipt is the interpreted final acknowledgement.
type Receipt struct {
	ReceiptID  string
	ReceivedAt time.Time
	// Items maps each activity line sequence number to its receipt id.
	Items map[int]string
}

type xmlReceipt struct {
	XMLName    xml.Name             `xml:"EFilingAcknowledgementXML"`
	ReceivedAt string               `xml:"ReceiptDateTimeText,attr"`
	BatchID    string               `xml:"BSAID"`
	Activities []xmlReceiptActivity `xml:"Activity"`
}

type xmlReceiptActivity struct {
	SeqNum int    `xml:"SeqNum,attr"`
	ID     string `xml:"BSAID"`
}

var receiptTimeLayouts = []string{time.RFC3339, "20060102150405", "2006-01-02"}

// ParseReceipt interprets an acknowledgement blob. The batch-level id wins
// when present; otherwise the id of the lowest line sequence is used.
func ParseReceipt(data []byte) (*Receipt, error) {
	fail := func(reason string, err error) (*Receipt, error) {
		return nil, &ParseError{Kind: BlobReceipt, Reason: reason, Err: err}
	}

	if err := checkWellFormed(data, receiptRoot); err != nil {
		return fail("malformed document", err)
	}
	var doc xmlReceipt
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fail("unexpected structure", err)
	}

	receivedAt, ok := parseReceiptTime(doc.ReceivedAt)
	if !ok {
		return fail(fmt.Sprintf("invalid receipt timestamp %q", doc.ReceivedAt), nil)
	}

	items := make(map[int]string, len(doc.Activities))
	for _, a := range doc.Activities {
		if a.SeqNum <= 0 {
			return fail(fmt.Sprintf("activity has invalid sequence number %d", a.SeqNum), nil)
		}
		if _, dup := items[a.SeqNum]; dup {
			return fail(fmt.Sprintf("activity sequence number %d repeated", a.SeqNum), nil)
		}
		id := strings.TrimSpace(a.ID)
		if !receiptIDPattern.MatchString(id) {
			return fail(fmt.Sprintf("activity %d receipt id %q is not 14 digits", a.SeqNum, id), nil)
		}
		items[a.SeqNum] = id
	}

	receiptID := strings.TrimSpace(doc.BatchID)
	if receiptID != "" && !receiptIDPattern.MatchString(receiptID) {
		return fail(fmt.Sprintf("batch receipt id %q is not 14 digits", receiptID), nil)
	}
	if receiptID == "" {
		if len(items) == 0 {
			return fail("no receipt identifier present", nil)
		}
		seqs := make([]int, 0, len(items))
		for seq := range items {
			seqs = append(seqs, seq)
		}
		sort.Ints(seqs)
		receiptID = items[seqs[0]]
	}

	return &Receipt{ReceiptID: receiptID, ReceivedAt: receivedAt, Items: items}, nil
}

func parseReceiptTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range receiptTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
