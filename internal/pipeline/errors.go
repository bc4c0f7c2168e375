package pipeline

import "fmt"

// RowError 封装某一行处理失败的信息。
type RowError struct {
	Row    int
	Ticker string
	// Stage is the last state the row reached before failing.
	Stage State
	Err   error
}

func (e *RowError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("row %d (%s) failed after %s", e.Row, e.Ticker, e.Stage)
	}
	return fmt.Sprintf("row %d (%s) failed after %s: %v", e.Row, e.Ticker, e.Stage, e.Err)
}

func (e *RowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
