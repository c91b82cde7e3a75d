package calibrate

// Progress receives updates while links are being classified. Classification
// dominates run time because every new file costs a history query.
type Progress interface {
	Start(title string, total int)
	Step()
	Done()
}

type nopProgress struct{}

func (nopProgress) Start(string, int) {}
func (nopProgress) Step()             {}
func (nopProgress) Done()             {}

func progressOrNop(p Progress) Progress {
	if p == nil {
		return nopProgress{}
	}
	return p
}
