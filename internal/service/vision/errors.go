package vision

import "fmt"

// Kind classifies why an analysis did not produce a usable result.
type Kind string

const (
	// KindInvalidInput 输入图片为空或格式不受支持，未发起任何外部调用。
	KindInvalidInput Kind = "invalid_input"
	// KindUnreadable 模型明确表示图片不是可识别的食品标签。
	KindUnreadable Kind = "unreadable"
	// KindUpstream 模型调用失败或返回内容无法解析。
	KindUpstream Kind = "upstream"
)

// AnalysisError is the only error type returned by Analyzer.Analyze.
type AnalysisError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("label analysis %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("label analysis %s: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...any) *AnalysisError {
	return &AnalysisError{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func upstream(message string, err error) *AnalysisError {
	return &AnalysisError{Kind: KindUpstream, Message: message, Err: err}
}
