package schedule

import "time"

// The shop operates in the UK. All cutoff arithmetic is done in
// Europe/London regardless of the host timezone so a redeploy can't shift
// send times.
var london *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}
	london = loc
}

// PostCollectionSendTime computes when the review-request SMS should go out
// after a device is collected: three hours later if collected before 16:00,
// otherwise 10:00 the next morning.
func PostCollectionSendTime(now time.Time) time.Time {
	local := now.In(london)
	if local.Hour() < 16 {
		return local.Add(3 * time.Hour)
	}
	next := local.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 10, 0, 0, 0, london)
}
