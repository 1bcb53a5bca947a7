package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Payload 对外暴露的结构化错误信息
type Payload struct {
	Entity    string `json:"entity,omitempty"`
	Operation string `json:"operation,omitempty"`
	Kind      string `json:"kind"`
	Field     string `json:"field,omitempty"`
	Operator  string `json:"operator,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Message   string `json:"message"`
}

// Reporter 将内部错误映射为结构化的错误载荷。
// 未知字段与不允许的操作属于安全敏感信息，只回显客户端传入的参数名；
// 类型转换与批量操作错误携带原始原因，便于排查。
type Reporter struct {
	log *log.Helper
}

func NewReporter(logger log.Logger) *Reporter {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Reporter{
		log: log.NewHelper(log.With(logger, "module", "error-reporter")),
	}
}

// Payload 生成结构化错误信息
func (r *Reporter) Payload(err error) Payload {
	if err == nil {
		return Payload{}
	}

	var be *BindError
	if errors.As(err, &be) {
		p := Payload{
			Entity:    be.Entity,
			Operation: be.Operation,
			Kind:      be.Kind.Reason(),
			Field:     be.Field,
			Operator:  be.Operator,
			Limit:     be.Limit,
		}
		switch be.Kind {
		case KindUnknownField:
			if be.Field == "" {
				p.Message = "unknown entity"
			} else {
				p.Message = fmt.Sprintf("invalid parameter %q", be.Field)
			}
		case KindOperationNotAllowed:
			p.Message = fmt.Sprintf("operation not allowed for parameter %q", be.Field)
		case KindInvalidSortField:
			p.Message = fmt.Sprintf("invalid sort field %q", be.Field)
		default:
			p.Message = be.Error()
		}
		return p
	}

	var boe *BatchOperationError
	if errors.As(err, &boe) {
		return Payload{
			Entity:    boe.Entity,
			Operation: boe.Operation,
			Kind:      KindBatchOperation.Reason(),
			Message:   boe.Error(),
		}
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		r.log.Errorf("query failed: %s", err.Error())
		return Payload{
			Entity:    qe.Entity,
			Operation: OpPage,
			Kind:      KindQueryFailed.Reason(),
			Message:   "query failed",
		}
	}

	r.log.Errorf("unclassified error: %s", err.Error())
	return Payload{
		Kind:    KindUnknown.Reason(),
		Message: "internal error",
	}
}

// Report 生成 kratos 结构化错误
func (r *Reporter) Report(err error) *kerrors.Error {
	if err == nil {
		return nil
	}

	var ke *kerrors.Error
	if errors.As(err, &ke) {
		return ke
	}

	p := r.Payload(err)

	md := map[string]string{}
	if p.Entity != "" {
		md["entity"] = p.Entity
	}
	if p.Operation != "" {
		md["operation"] = p.Operation
	}
	if p.Field != "" {
		md["field"] = p.Field
	}
	if p.Operator != "" {
		md["operator"] = p.Operator
	}
	if p.Limit > 0 {
		md["limit"] = strconv.Itoa(p.Limit)
	}

	return kerrors.New(statusCode(KindOf(err)), p.Kind, p.Message).WithMetadata(md)
}

func statusCode(k Kind) int {
	switch k {
	case KindUnknownField, KindInvalidParameter, KindOperationNotAllowed,
		KindParamCountLimit, KindInvalidSortField, KindTypeCoercion, KindInvalidPaging:
		return http.StatusBadRequest
	case KindBatchOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
