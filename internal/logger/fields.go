package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldJob is the scheduled-job name
	FieldJob = "job"

	// FieldPeriod is the aggregation period type
	FieldPeriod = "period"

	// FieldDepartmentID is the department under calculation
	FieldDepartmentID = "department_id"

	// FieldUserID is the user under calculation
	FieldUserID = "user_id"
)

// Standard metric fields used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldFailed is a failed-item count for batch runs
	FieldFailed = "failed"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
