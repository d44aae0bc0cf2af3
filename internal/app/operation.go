package app

// ArkOperation tracks a CLI operation that may mutate the operations index.
// Operations are created in memory with ID=0. Only mutating commands
// persist them (giving them an auto-increment ID from the database).
type ArkOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewArkOperation creates a new in-memory operation record.
func NewArkOperation(operation, parameters string) *ArkOperation {
	return &ArkOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *ArkOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. The status is written to the index
// when the app closes.
func (op *ArkOperation) Fail() {
	op.Status = "error"
}
