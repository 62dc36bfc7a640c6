package builder

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
)

// checkDocument is the structural preflight: it re-parses serialized bytes
// and checks the invariants the regulator enforces on receipt.
func checkDocument(data []byte) []string {
	c := &checker{}

	seqs, ok := c.scanTokens(data)
	if !ok {
		return c.reasons
	}

	var batch xmlBatch
	if err := xml.Unmarshal(data, &batch); err != nil {
		c.failf("document does not match the batch schema: %v", err)
		return c.reasons
	}

	if len(batch.Activities) == 0 {
		c.failf("document contains no activity")
	}
	parties, payments := 0, 0
	for i, activity := range batch.Activities {
		parties += len(activity.Parties)
		payments += len(activity.Payments)
		c.checkActivity(i+1, activity)
	}
	if batch.ActivityCount != len(batch.Activities) {
		c.failf("declared ActivityCount %d does not match %d activities", batch.ActivityCount, len(batch.Activities))
	}
	if batch.PartyCount != parties {
		c.failf("declared PartyCount %d does not match %d parties", batch.PartyCount, parties)
	}
	if batch.PaymentCount != payments {
		c.failf("declared PaymentCount %d does not match %d payments", batch.PaymentCount, payments)
	}

	c.checkSequence(seqs)
	return c.reasons
}

// scanTokens walks the raw token stream, which catches well-formedness errors
// that Unmarshal would tolerate, checks the root element and collects every
// SeqNum in document order.
func (c *checker) scanTokens(data []byte) ([]int, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var seqs []int
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.failf("document is not well-formed: %v", err)
			return nil, false
		}
		start, isStart := tok.(xml.StartElement)
		if !isStart {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if start.Name.Local != RootElement {
				c.failf("root element is %q, expected %q", start.Name.Local, RootElement)
				return nil, false
			}
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "SeqNum" {
				continue
			}
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n <= 0 {
				c.failf("element %s has invalid SeqNum %q", start.Name.Local, attr.Value)
				continue
			}
			seqs = append(seqs, n)
		}
	}
	if !sawRoot {
		c.failf("document is empty")
		return nil, false
	}
	return seqs, true
}

func (c *checker) checkActivity(index int, activity xmlActivity) {
	roles := make(map[string]int)
	for _, p := range activity.Parties {
		roles[p.TypeCode]++
		if p.TypeCode == RoleTransmitter {
			c.checkTransmitterIdentifiers(index, p)
		}
	}
	for _, role := range MandatedRoles {
		if roles[role] == 0 {
			c.failf("activity %d is missing mandated party role %s", index, role)
		}
	}
}

func (c *checker) checkTransmitterIdentifiers(index int, p xmlParty) {
	var hasTIN, hasTCC bool
	for _, ident := range p.Identifications {
		if ident.Number == "" {
			continue
		}
		switch ident.TypeCode {
		case IDTypeTIN:
			hasTIN = true
		case IDTypeTCC:
			hasTCC = true
		}
	}
	if !hasTIN {
		c.failf("activity %d transmitter lacks a tax identifier", index)
	}
	if !hasTCC {
		c.failf("activity %d transmitter lacks a transmission control code", index)
	}
}

// checkSequence requires SeqNum values to be unique and run 1..n in
// document order.
func (c *checker) checkSequence(seqs []int) {
	if len(seqs) == 0 {
		c.failf("document carries no SeqNum identifiers")
		return
	}
	seen := make(map[int]struct{}, len(seqs))
	for _, n := range seqs {
		if _, dup := seen[n]; dup {
			c.failf("SeqNum %d is not unique", n)
		}
		seen[n] = struct{}{}
	}
	for i, n := range seqs {
		if n != i+1 {
			c.failf("SeqNum sequence breaks at position %d: expected %d, got %d", i+1, i+1, n)
			return
		}
	}
}
