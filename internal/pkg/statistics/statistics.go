package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/cache"
	"github.com/markora/shopcore/internal/pkg/database"
)

const (
	CacheKeyOrdersTotal  = "statistics:orders:total"
	CacheKeyOrdersDaily  = "statistics:orders:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyRevenueDaily = "statistics:revenue:daily:%s"
	CacheKeyUsers        = "statistics:users:total"
	CacheExpiration      = 30 * time.Minute
)

// StatisticsData holds the shop metrics for the admin dashboard
type StatisticsData struct {
	TodayOrders       int
	TodayRevenueCents int64
	TotalOrders       int
	TotalUsers        int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached statistics are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all shop statistics and stores them in Redis
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		log.Printf("Error counting total orders: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todayOrders int64
	if err := db.Model(&models.Order{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayOrders).Error; err != nil {
		log.Printf("Error counting today's orders: %v", err)
		return err
	}

	var todayRevenue int64
	if err := db.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ? AND status != ?", todayStart, todayEnd, models.OrderStatusCancelled).
		Select("COALESCE(SUM(total_cents), 0)").
		Scan(&todayRevenue).Error; err != nil {
		log.Printf("Error summing today's revenue: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyOrdersTotal, strconv.FormatInt(totalOrders, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total orders: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyOrdersDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayOrders, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's orders: %v", err)
		return err
	}

	revenueKey := fmt.Sprintf(CacheKeyRevenueDaily, today)
	if err := cache.Set(revenueKey, strconv.FormatInt(todayRevenue, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's revenue: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total Orders: %d, Today's Orders: %d, Today's Revenue: %d, Total Users: %d",
		totalOrders, todayOrders, todayRevenue, totalUsers)

	return nil
}

// GetTotalOrders returns the total number of orders from cache or database
func GetTotalOrders() int {
	val, err := cache.Get(CacheKeyOrdersTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total orders: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyOrdersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total orders: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayOrders returns the number of orders placed today from cache or database
func GetTodayOrders() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyOrdersDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Order{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's orders: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's orders: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayRevenueCents returns today's gross revenue from cache or database
func GetTodayRevenueCents() int64 {
	today := time.Now().Format("2006-01-02")
	revenueKey := fmt.Sprintf(CacheKeyRevenueDaily, today)

	val, err := cache.Get(revenueKey)
	if err != nil {
		var sum int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Order{}).
			Where("created_at BETWEEN ? AND ? AND status != ?", todayStart, todayEnd, models.OrderStatusCancelled).
			Select("COALESCE(SUM(total_cents), 0)").
			Scan(&sum).Error; err != nil {
			log.Printf("Error summing today's revenue: %v", err)
			return 0
		}

		if err := cache.Set(revenueKey, strconv.FormatInt(sum, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's revenue: %v", err)
		}

		return sum
	}

	sum, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return sum
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics as a single structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayOrders:       GetTodayOrders(),
		TodayRevenueCents: GetTodayRevenueCents(),
		TotalOrders:       GetTotalOrders(),
		TotalUsers:        GetTotalUsers(),
	}
}
