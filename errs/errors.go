package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownField
	KindInvalidParameter
	KindOperationNotAllowed
	KindParamCountLimit
	KindInvalidSortField
	KindTypeCoercion
	KindDuplicateField
	KindInvalidPaging
	KindBatchOperation
	KindQueryFailed
)

var kindReasons = map[Kind]string{
	KindUnknown:             "UNKNOWN",
	KindUnknownField:        "UNKNOWN_FIELD",
	KindInvalidParameter:    "INVALID_PARAMETER",
	KindOperationNotAllowed: "OPERATION_NOT_ALLOWED",
	KindParamCountLimit:     "PARAM_COUNT_LIMIT",
	KindInvalidSortField:    "INVALID_SORT_FIELD",
	KindTypeCoercion:        "TYPE_COERCION",
	KindDuplicateField:      "DUPLICATE_FIELD",
	KindInvalidPaging:       "INVALID_PAGING",
	KindBatchOperation:      "BATCH_OPERATION",
	KindQueryFailed:         "QUERY_FAILED",
}

// Reason 返回错误原因代码，用于对外的结构化错误
func (k Kind) Reason() string {
	if r, ok := kindReasons[k]; ok {
		return r
	}
	return kindReasons[KindUnknown]
}

func (k Kind) String() string { return k.Reason() }

// 哨兵错误，配合 errors.Is 使用
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrOperationNotAllowed = errors.New("operation not allowed")
	ErrParamCountLimit     = errors.New("parameter count limit exceeded")
	ErrInvalidSortField    = errors.New("invalid sort field")
	ErrTypeCoercion        = errors.New("type coercion failed")
	ErrDuplicateField      = errors.New("duplicate field")
	ErrInvalidPaging       = errors.New("invalid paging")
	ErrBatchOperation      = errors.New("batch operation failed")
	ErrQueryFailed         = errors.New("query failed")
)

var kindSentinels = map[Kind]error{
	KindUnknownField:        ErrUnknownField,
	KindInvalidParameter:    ErrInvalidParameter,
	KindOperationNotAllowed: ErrOperationNotAllowed,
	KindParamCountLimit:     ErrParamCountLimit,
	KindInvalidSortField:    ErrInvalidSortField,
	KindTypeCoercion:        ErrTypeCoercion,
	KindDuplicateField:      ErrDuplicateField,
	KindInvalidPaging:       ErrInvalidPaging,
	KindBatchOperation:      ErrBatchOperation,
	KindQueryFailed:         ErrQueryFailed,
}

// 引擎操作名称
const (
	OpRegister    = "register"
	OpBind        = "bind"
	OpBindSort    = "bind_sort"
	OpPage        = "page"
	OpBatchCreate = "batch_create"
	OpBatchDelete = "batch_delete"
)

// BindError 参数绑定阶段的错误。一次绑定只会产生一个 BindError。
type BindError struct {
	Kind      Kind
	Entity    string
	Operation string // 引擎操作：bind / bind_sort / register / page
	Field     string // 客户端传入的参数名或字段别名
	Operator  string // 尝试使用的过滤操作符
	Limit     int
	Detail    string
	Cause     error
}

func (e *BindError) Error() string {
	var msg string
	switch e.Kind {
	case KindUnknownField:
		if e.Field == "" {
			msg = "unknown entity"
		} else {
			msg = fmt.Sprintf("invalid parameter %q", e.Field)
		}
	case KindInvalidParameter:
		msg = fmt.Sprintf("invalid parameter %q", e.Field)
	case KindOperationNotAllowed:
		msg = fmt.Sprintf("operation %s not allowed for parameter %q", e.Operator, e.Field)
	case KindParamCountLimit:
		if e.Field == "" {
			msg = fmt.Sprintf("too many parameters, limit is %d", e.Limit)
		} else {
			msg = fmt.Sprintf("parameter %q exceeds limit %d", e.Field, e.Limit)
		}
	case KindInvalidSortField:
		msg = fmt.Sprintf("invalid sort field %q", e.Field)
	case KindTypeCoercion:
		msg = fmt.Sprintf("invalid value for parameter %q", e.Field)
	case KindDuplicateField:
		msg = fmt.Sprintf("duplicate field alias %q", e.Field)
	case KindInvalidPaging:
		msg = "invalid paging"
	default:
		msg = "bind failed"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Entity != "" {
		return e.Entity + ": " + msg
	}
	return msg
}

func (e *BindError) Unwrap() error { return e.Cause }

func (e *BindError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// UnknownEntity 实体未注册
func UnknownEntity(entity string) *BindError {
	return &BindError{Kind: KindUnknownField, Entity: entity, Operation: OpBind}
}

// UnknownField 参数名无法在字段目录中解析
func UnknownField(entity, key string) *BindError {
	return &BindError{Kind: KindUnknownField, Entity: entity, Operation: OpBind, Field: key}
}

// InvalidParameter 参数格式非法
func InvalidParameter(entity, key, detail string) *BindError {
	return &BindError{Kind: KindInvalidParameter, Entity: entity, Operation: OpBind, Field: key, Detail: detail}
}

// OperationNotAllowed 字段不允许使用该操作符
func OperationNotAllowed(entity, key, operator string) *BindError {
	return &BindError{Kind: KindOperationNotAllowed, Entity: entity, Operation: OpBind, Field: key, Operator: operator}
}

// ParamCountLimit 单个字段出现次数超限；field 为空表示总参数数量超限
func ParamCountLimit(entity, field string, limit int) *BindError {
	return &BindError{Kind: KindParamCountLimit, Entity: entity, Operation: OpBind, Field: field, Limit: limit}
}

// InvalidSortField 排序字段非法
func InvalidSortField(entity, field, detail string) *BindError {
	return &BindError{Kind: KindInvalidSortField, Entity: entity, Operation: OpBindSort, Field: field, Detail: detail}
}

// TypeCoercion 取值无法转换为字段声明的类型
func TypeCoercion(entity, key, operator string, cause error) *BindError {
	return &BindError{Kind: KindTypeCoercion, Entity: entity, Operation: OpBind, Field: key, Operator: operator, Cause: cause}
}

// DuplicateField 同一实体下别名重复
func DuplicateField(entity, alias string) *BindError {
	return &BindError{Kind: KindDuplicateField, Entity: entity, Operation: OpRegister, Field: alias}
}

// InvalidPaging 分页参数非法
func InvalidPaging(entity string, cause error) *BindError {
	return &BindError{Kind: KindInvalidPaging, Entity: entity, Operation: OpPage, Cause: cause}
}

// BatchOperationError 原子批量操作失败，事务已回滚
type BatchOperationError struct {
	Operation  string // batch_create / batch_delete
	Entity     string
	Index      int // 失败所在分块的第一个元素下标
	RolledBack bool
	Cause      error
}

func (e *BatchOperationError) Error() string {
	msg := fmt.Sprintf("%s failed at item %d", e.Operation, e.Index)
	if e.Entity != "" {
		msg = e.Entity + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if !e.RolledBack {
		msg += " (rollback not confirmed)"
	}
	return msg
}

func (e *BatchOperationError) Unwrap() error { return e.Cause }

func (e *BatchOperationError) Is(target error) bool { return target == ErrBatchOperation }

// QueryError 分页查询阶段后端返回的错误
type QueryError struct {
	Entity string
	Cause  error
}

func (e *QueryError) Error() string {
	if e.Cause == nil {
		return e.Entity + ": query failed"
	}
	return e.Entity + ": query failed: " + e.Cause.Error()
}

func (e *QueryError) Unwrap() error { return e.Cause }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }

// KindOf 返回错误所属的类别
func KindOf(err error) Kind {
	var be *BindError
	if errors.As(err, &be) {
		return be.Kind
	}
	var boe *BatchOperationError
	if errors.As(err, &boe) {
		return KindBatchOperation
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return KindQueryFailed
	}
	return KindUnknown
}
