package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView          Action = "view"
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionList          Action = "list"
	ActionListAll       Action = "list-all"
	ActionSetStatus     Action = "set-status"
	ActionSetPrice      Action = "set-price"
	ActionUploadReceipt Action = "upload-receipt"
	ActionExport        Action = "export"
	ActionManage        Action = "manage"
)
