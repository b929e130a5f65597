package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/markora/shopcore/internal/pkg/jobqueue"
	"github.com/markora/shopcore/internal/pkg/statistics"
)

// HandleAdminStats returns shop metrics and job queue counters for the
// admin dashboard.
func HandleAdminStats(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	jobStats, err := jobqueue.GetManager().GetQueue().GetJobStats(c.UserContext())
	if err != nil {
		jobStats = nil
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"today_orders":        stats.TodayOrders,
		"today_revenue_cents": stats.TodayRevenueCents,
		"total_orders":        stats.TotalOrders,
		"total_users":         stats.TotalUsers,
		"jobs":                jobStats,
	})
}
