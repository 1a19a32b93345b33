package cache

import (
	"time"
)

// 日次の取り込みが終わる目安の時刻（日本時間）
const (
	RefreshHour   = 18
	RefreshMinute = 30
)

var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// TimeUntilNextRefresh は now から次の18:30（日本時間）までの期間を返します。
// 株価キャッシュはこの時刻に新しい日足が入るまで有効です。
func TimeUntilNextRefresh(now time.Time) time.Duration {
	local := now.In(tokyo)
	next := time.Date(local.Year(), local.Month(), local.Day(), RefreshHour, RefreshMinute, 0, 0, tokyo)

	// 今日の更新時刻が既に過ぎている場合は翌日
	if !local.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(local)
}
