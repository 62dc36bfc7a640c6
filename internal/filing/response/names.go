// Package response interprets the regulator's acknowledgement blobs. Both
// parsers are pure.
package response

// Directory names on the regulator's transfer host.
const (
	InboxDir  = "submissions"
	OutboxDir = "acknowledgements"
)

const (
	messagesSuffix = ".MESSAGES.XML"
	receiptSuffix  = ".ACKED"
)

// MessagesFilename is the outbox name of the messages blob for an upload.
func MessagesFilename(transmitted string) string {
	return transmitted + messagesSuffix
}

// ReceiptFilename is the outbox name of the final receipt for an upload.
func ReceiptFilename(transmitted string) string {
	return transmitted + receiptSuffix
}
