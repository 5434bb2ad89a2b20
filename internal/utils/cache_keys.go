package utils

const (
	AnalyticsKindShifts = "shifts"
	AnalyticsKindUsers  = "users"
)

func AnalyticsCacheKey(kind, orgID string) string {
	return "analytics:v1:" + kind + ":org=" + orgID
}

// AnalyticsCacheKeys lists every analytics key of an organization.
func AnalyticsCacheKeys(orgID string) []string {
	return []string{
		AnalyticsCacheKey(AnalyticsKindShifts, orgID),
		AnalyticsCacheKey(AnalyticsKindUsers, orgID),
	}
}
