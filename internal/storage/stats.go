package storage

import "context"

// SourceCounts holds the funnel counters of one acquisition source.
type SourceCounts struct {
	Source         string `db:"source"`
	Total          int64  `db:"total"`
	Started        int64  `db:"started"`
	InProgress     int64  `db:"in_progress"`
	Completed      int64  `db:"completed"`
	ImageGenerated int64  `db:"image_generated"`
	TexterClicks   int64  `db:"texter_clicks"`
	HolstClicks    int64  `db:"holst_clicks"`
	Subscribed     int64  `db:"subscribed"`
}

const funnelCountColumns = `
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN p.state = 'start' THEN 1 ELSE 0 END), 0) AS started,
		COALESCE(SUM(CASE WHEN p.state = 'quiz_in_progress' THEN 1 ELSE 0 END), 0) AS in_progress,
		COALESCE(SUM(CASE WHEN p.state = 'quiz_completed' THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN p.state = 'image_generated' THEN 1 ELSE 0 END), 0) AS image_generated,
		COALESCE(SUM(CASE WHEN u.clicked_texter_link THEN 1 ELSE 0 END), 0) AS texter_clicks,
		COALESCE(SUM(CASE WHEN u.clicked_holst_link THEN 1 ELSE 0 END), 0) AS holst_clicks,
		COALESCE(SUM(CASE WHEN u.is_subscribed THEN 1 ELSE 0 END), 0) AS subscribed
	FROM users u
	LEFT JOIN progress p ON p.user_id = u.id`

// FunnelBySource aggregates users per acquisition source, largest first.
// Users without progress count under the empty source.
func (s *Store) FunnelBySource(ctx context.Context) ([]SourceCounts, error) {
	var out []SourceCounts
	err := s.selectAll(ctx, &out, `
		SELECT COALESCE(p.acquisition_source, '') AS source,`+funnelCountColumns+`
		GROUP BY COALESCE(p.acquisition_source, '')
		ORDER BY total DESC, source`)
	return out, err
}

// FunnelTotal aggregates all users.
func (s *Store) FunnelTotal(ctx context.Context) (SourceCounts, error) {
	var out SourceCounts
	err := s.get(ctx, &out, `SELECT '' AS source,`+funnelCountColumns)
	return out, err
}
