package badger

import (
	"github.com/poiesic/ragingest/core"
)

// recordPrefix separates record keys from any other data in a namespace.
const recordPrefix = "rec:"

// makeNamespacePrefix generates the key prefix shared by all records of one
// collection. Format: database/collection/rec:
func makeNamespacePrefix(database, collection string) []byte {
	prefix := database + "/" + collection + "/" + recordPrefix
	return []byte(prefix)
}

// makeRecordKey generates a key for a record by ID.
// Format: database/collection/rec:<16 hex digits>
func makeRecordKey(namespace []byte, id core.ID) []byte {
	hex := id.String()
	buf := make([]byte, len(namespace)+len(hex))
	offset := copy(buf, namespace)
	copy(buf[offset:], hex)
	return buf
}
