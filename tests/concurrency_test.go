package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"
)

func getBaseURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/api", port)
}

func requireServer(t *testing.T) {
	t.Helper()
	client := http.Client{Timeout: time.Second}
	resp, err := client.Get(getBaseURL() + "/coupons?limit=1")
	if err != nil {
		t.Skipf("coupon service not reachable at %s: %v", getBaseURL(), err)
	}
	resp.Body.Close()
}

func createCoupon(t *testing.T, code string, usageLimit, userLimit int) {
	t.Helper()
	now := time.Now().UTC()
	createBody, _ := json.Marshal(map[string]interface{}{
		"code":        code,
		"type":        "fixed",
		"value":       10,
		"usage_limit": usageLimit,
		"user_limit":  userLimit,
		"valid_from":  now.Add(-time.Minute).Format(time.RFC3339),
		"valid_until": now.Add(time.Hour).Format(time.RFC3339),
		"created_by":  "concurrency-suite",
	})
	resp, err := http.Post(getBaseURL()+"/coupons", "application/json", bytes.NewBuffer(createBody))
	if err != nil {
		t.Fatalf("Failed to create coupon: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Failed to create coupon: status %d", resp.StatusCode)
	}
}

func redeem(userID, code string) {
	body, _ := json.Marshal(map[string]interface{}{
		"user_id":      userID,
		"code":         code,
		"order_amount": 100,
	})
	resp, err := http.Post(getBaseURL()+"/coupons/redeem", "application/json", bytes.NewBuffer(body))
	if err == nil {
		resp.Body.Close()
	}
}

type couponDetails struct {
	UsedCount int `json:"used_count"`
	UsedBy    []struct {
		User string `json:"user"`
	} `json:"used_by"`
}

func fetchCoupon(t *testing.T, code string) couponDetails {
	t.Helper()
	resp, err := http.Get(getBaseURL() + "/coupons/" + code)
	if err != nil {
		t.Fatalf("Failed to get coupon details: %v", err)
	}
	defer resp.Body.Close()

	var details couponDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		t.Fatalf("Failed to decode coupon details: %v", err)
	}
	return details
}

func TestConcurrency(t *testing.T) {
	requireServer(t)

	t.Run("FlashSaleAttack", func(t *testing.T) {
		code := fmt.Sprintf("FLASH_%d", time.Now().UnixNano())
		stock := 5
		requests := 50
		createCoupon(t, code, stock, 1)

		var wg sync.WaitGroup
		wg.Add(requests)
		for i := 0; i < requests; i++ {
			go func(userID int) {
				defer wg.Done()
				redeem(fmt.Sprintf("user_%d", userID), code)
			}(i)
		}
		wg.Wait()

		details := fetchCoupon(t, code)
		if details.UsedCount > stock {
			t.Errorf("Expected at most %d redemptions, got %d", stock, details.UsedCount)
		}
		if len(details.UsedBy) != details.UsedCount {
			t.Errorf("used_by has %d entries but used_count is %d", len(details.UsedBy), details.UsedCount)
		}
	})

	t.Run("DoubleDipAttack", func(t *testing.T) {
		code := fmt.Sprintf("DOUBLE_%d", time.Now().UnixNano())
		requests := 15
		userID := "attacker_user"
		createCoupon(t, code, 10, 1)

		// the same user tries to redeem the coupon many times at once
		var wg sync.WaitGroup
		wg.Add(requests)
		for i := 0; i < requests; i++ {
			go func() {
				defer wg.Done()
				redeem(userID, code)
			}()
		}
		wg.Wait()

		details := fetchCoupon(t, code)
		if details.UsedCount > 1 {
			t.Errorf("Expected at most 1 redemption, got %d", details.UsedCount)
		}
		for _, r := range details.UsedBy {
			if r.User != userID {
				t.Errorf("Unexpected redeemer %q", r.User)
			}
		}
	})
}
