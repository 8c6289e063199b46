package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "collection context key " + string(c)
}

// RequestIDKey is the key for the caller's request id
const RequestIDKey = contextKey("requestID")

// CollectionKey is the key for the collection being written or read
const CollectionKey = contextKey("collection")

// OperationKey is the key for the facade operation, e.g. "set.all"
const OperationKey = contextKey("operation")

// TransactionIDKey is the key for the id of the enclosing transaction
const TransactionIDKey = contextKey("transactionID")

// ComponentKey is the key for the emitting component
const ComponentKey = contextKey("component")
