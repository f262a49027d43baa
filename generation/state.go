package generation

import "fmt"

// Status 定义一次生成的生命周期状态
type Status string

const (
	StatusCompiling  Status = "compiling"  // 编译请求
	StatusRequesting Status = "requesting" // 等待后端
	StatusValidating Status = "validating" // 校验响应
	StatusRetrying   Status = "retrying"   // 准备下一次尝试
	StatusSucceeded  Status = "succeeded"  // 终态：得到合法值
	StatusExhausted  Status = "exhausted"  // 终态：尝试预算耗尽
	StatusFailed     Status = "failed"     // 终态：永久后端错误或超时
)

// validTransitions 定义合法的状态转换
var validTransitions = map[Status][]Status{
	StatusCompiling:  {StatusRequesting, StatusFailed},
	StatusRequesting: {StatusValidating, StatusRetrying, StatusFailed},
	StatusValidating: {StatusSucceeded, StatusRetrying},
	StatusRetrying:   {StatusCompiling, StatusExhausted, StatusFailed},
	StatusSucceeded:  {},
	StatusExhausted:  {},
	StatusFailed:     {},
}

// Terminal 报告状态是否为终态
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusExhausted || s == StatusFailed
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
