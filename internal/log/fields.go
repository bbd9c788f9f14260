package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldSubcomponent = "subcomponent"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldLogin        = "login"
	FieldUserID       = "user_id"
	FieldAccountID    = "account_id"
	FieldAccountName  = "account_name"
	FieldCategory     = "category"
	FieldTransaction  = "transaction_id"
	FieldAmount       = "amount"
	FieldBalance      = "balance"
	FieldEventType    = "event_type"
	FieldEventID      = "event_id"
	FieldPath         = "path"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentUser     = "user"
	ComponentAccount  = "account"
	ComponentCategory = "category"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpLogin    = "login"
	OpRegister = "register"
	OpExport   = "export"
	OpPublish  = "publish"
	OpConsume  = "consume"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount adds account identity and balance fields.
func (f LogFields) WithAccount(id int64, name, balance string) LogFields {
	f[FieldAccountID] = id
	f[FieldAccountName] = name
	f[FieldBalance] = balance
	return f
}

// WithTransaction adds transaction fields.
func (f LogFields) WithTransaction(id int64, amount, category string) LogFields {
	f[FieldTransaction] = id
	f[FieldAmount] = amount
	f[FieldCategory] = category
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
