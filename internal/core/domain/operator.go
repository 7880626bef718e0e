package domain

type OperatorID string

// OperatorRole gates which control endpoints a token may call.
type OperatorRole string

const (
	RoleOperator OperatorRole = "operator"
	RoleViewer   OperatorRole = "viewer"
)

func (r OperatorRole) CanControl() bool {
	return r == RoleOperator
}
