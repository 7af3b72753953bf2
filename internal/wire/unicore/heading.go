package unicore

import "strconv"

// CodeUniHeading is the dispatcher code for the dual-antenna heading sentence.
const CodeUniHeading = "UNIHEADINGA"

// UniHeading is the short form of a dual-antenna heading solution: enough
// fields for fusion to align the global heading stream, truncated from the
// receiver's full solution record.
type UniHeading struct {
	HeadingDeg    float64
	HeadingAccDeg float64
	PitchDeg      float64
	BaselineM     float64
	QualityFlag   int
	RxMono        int64
}

// DecodeUniHeading parses "UNIHEADINGA,<heading>,<headingAcc>,<pitch>,<baseline>,<qualityFlag>".
func DecodeUniHeading(f Frame) (UniHeading, bool) {
	if f.Code != CodeUniHeading || len(f.Fields) < 5 {
		return UniHeading{}, false
	}
	heading, err1 := strconv.ParseFloat(f.Fields[0], 64)
	headingAcc, err2 := strconv.ParseFloat(f.Fields[1], 64)
	pitch, err3 := strconv.ParseFloat(f.Fields[2], 64)
	baseline, err4 := strconv.ParseFloat(f.Fields[3], 64)
	quality, err5 := strconv.Atoi(f.Fields[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return UniHeading{}, false
	}
	return UniHeading{
		HeadingDeg:    heading,
		HeadingAccDeg: headingAcc,
		PitchDeg:      pitch,
		BaselineM:     baseline,
		QualityFlag:   quality,
	}, true
}
