package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"event_ticketing/internal/pkg/config"
	"event_ticketing/pkg/loadtest"
	"event_ticketing/pkg/utils"

	"github.com/google/uuid"
)

const (
	roleUser      = 1
	roleOrganizer = 2

	maxAttempts = 10
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	baseURL string
	secret  string
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "服务地址")
		mode        = flag.String("mode", "checkin", "checkin | coupon")
		users       = flag.Int("users", 500, "并发用户数，每人一张票")
		capacity    = flag.Int("capacity", 50, "活动容量 (checkin 模式)")
		uses        = flag.Int("uses", 5, "优惠券可用次数 (coupon 模式)")
		concurrency = flag.Int("concurrency", 200, "并发请求数")
		secret      = flag.String("secret", "", "JWT 密钥，默认读取配置")
	)
	flag.Parse()

	jwtSecret := *secret
	if jwtSecret == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("读取配置失败: %v\n", err)
			os.Exit(1)
		}
		jwtSecret = cfg.JWT.Secret
	}
	c := &client{baseURL: *baseURL, secret: jwtSecret}
	ctx := context.Background()

	var ok bool
	switch *mode {
	case "checkin":
		ok = runCheckIn(ctx, c, *users, *capacity, *concurrency)
	case "coupon":
		ok = runCoupon(ctx, c, *users, *uses, *concurrency)
	default:
		fmt.Printf("未知模式: %s\n", *mode)
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

// runCheckIn N 个持票用户同时检票，只允许 capacity 个成功
func runCheckIn(ctx context.Context, c *client, users, capacity, concurrency int) bool {
	organizer := c.token(uuid.NewString(), roleOrganizer)
	eventID, err := c.createEvent(ctx, organizer, capacity)
	if err != nil {
		fmt.Printf("创建活动失败: %v\n", err)
		return false
	}
	holders, err := c.buyTickets(ctx, eventID, users, concurrency)
	if err != nil {
		fmt.Printf("购票失败: %v\n", err)
		return false
	}

	fmt.Printf("开始压测：%d 个持票用户抢 %d 个入场名额 (event: %s)...\n", len(holders), capacity, eventID)
	requests := make([]loadtest.RequestFunc, 0, len(holders))
	for _, h := range holders {
		h := h
		requests = append(requests, func(ctx context.Context) (loadtest.Outcome, error) {
			status, _, err := c.do(ctx, http.MethodPost, "/checkins", h.token, map[string]string{"ticketId": h.ticketID})
			if err != nil {
				return "", err
			}
			if status == http.StatusOK {
				return "admitted", nil
			}
			return loadtest.Outcome(strconv.Itoa(status)), nil
		})
	}
	result := loadtest.NewRunner("check-in capacity gate", concurrency).Run(ctx, requests)
	result.Print(os.Stdout)

	var detail struct {
		Capacity struct {
			CurrentCount int `json:"currentCount"`
			MaxCapacity  int `json:"maxCapacity"`
		} `json:"capacity"`
	}
	if _, env, err := c.do(ctx, http.MethodGet, "/events/"+eventID, organizer, nil); err != nil || json.Unmarshal(env.Data, &detail) != nil {
		fmt.Printf("读取活动失败: %v\n", err)
		return false
	}

	expected := min(capacity, len(holders))
	admitted := result.Outcomes["admitted"]
	fmt.Printf("成功入场: %d (预期: %d)，活动计数: %d/%d\n", admitted, expected, detail.Capacity.CurrentCount, detail.Capacity.MaxCapacity)
	return verdict(admitted == expected && detail.Capacity.CurrentCount == admitted)
}

// runCoupon N 个持票用户同时核销同一张券，只允许 uses 次成功
func runCoupon(ctx context.Context, c *client, users, uses, concurrency int) bool {
	organizer := c.token(uuid.NewString(), roleOrganizer)
	eventID, err := c.createEvent(ctx, organizer, users)
	if err != nil {
		fmt.Printf("创建活动失败: %v\n", err)
		return false
	}
	holders, err := c.buyTickets(ctx, eventID, users, concurrency)
	if err != nil {
		fmt.Printf("购票失败: %v\n", err)
		return false
	}

	code := "STRESS" + strconv.FormatInt(time.Now().Unix(), 36)
	_, env, err := c.do(ctx, http.MethodPost, "/coupons", organizer, map[string]interface{}{
		"code":          code,
		"eventId":       eventID,
		"title":         "压测专用券",
		"discountType":  "percentage",
		"discountValue": 20,
		"validFrom":     time.Now().Add(-time.Minute).Format(time.RFC3339),
		"validUntil":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"maxUses":       uses,
	})
	var coupon struct {
		ID string `json:"id"`
	}
	if err != nil || json.Unmarshal(env.Data, &coupon) != nil || coupon.ID == "" {
		fmt.Printf("创建优惠券失败: %v %s\n", err, env.Message)
		return false
	}

	fmt.Printf("开始压测：%d 个用户抢 %d 次优惠 (coupon: %s)...\n", len(holders), uses, code)
	requests := make([]loadtest.RequestFunc, 0, len(holders))
	for _, h := range holders {
		h := h
		requests = append(requests, func(ctx context.Context) (loadtest.Outcome, error) {
			status, _, err := c.do(ctx, http.MethodPost, "/coupons/apply", h.token, map[string]interface{}{
				"code": code, "eventId": eventID, "amount": "100.00",
			})
			if err != nil {
				return "", err
			}
			if status == http.StatusOK {
				return "applied", nil
			}
			return loadtest.Outcome(strconv.Itoa(status)), nil
		})
	}
	result := loadtest.NewRunner("coupon redemption", concurrency).Run(ctx, requests)
	result.Print(os.Stdout)

	var stats struct {
		RemainingUses int `json:"remainingUses"`
	}
	if _, env, err := c.do(ctx, http.MethodGet, "/coupons/"+coupon.ID+"/stats", organizer, nil); err != nil || json.Unmarshal(env.Data, &stats) != nil {
		fmt.Printf("读取优惠券统计失败: %v\n", err)
		return false
	}

	expected := min(uses, len(holders))
	applied := result.Outcomes["applied"]
	fmt.Printf("成功核销: %d (预期: %d)，剩余次数: %d\n", applied, expected, stats.RemainingUses)
	return verdict(applied == expected && stats.RemainingUses == uses-applied)
}

type holder struct {
	token    string
	ticketID string
}

func (c *client) createEvent(ctx context.Context, token string, capacity int) (string, error) {
	_, env, err := c.do(ctx, http.MethodPost, "/events", token, map[string]interface{}{
		"name":        fmt.Sprintf("stress-%d", time.Now().UnixNano()),
		"date":        time.Now().Add(time.Hour).Format(time.RFC3339),
		"location":    "stress",
		"maxCapacity": capacity,
		"price":       "100.00",
	})
	if err != nil {
		return "", err
	}
	var event struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &event); err != nil || event.ID == "" {
		return "", fmt.Errorf("unexpected response: %s", env.Message)
	}
	return event.ID, nil
}

func (c *client) buyTickets(ctx context.Context, eventID string, users, concurrency int) ([]holder, error) {
	holders := make([]holder, users)
	requests := make([]loadtest.RequestFunc, users)
	for i := range holders {
		i := i
		holders[i].token = c.token(uuid.NewString(), roleUser)
		requests[i] = func(ctx context.Context) (loadtest.Outcome, error) {
			status, env, err := c.do(ctx, http.MethodPost, "/tickets", holders[i].token, map[string]string{"eventId": eventID})
			if err != nil {
				return "", err
			}
			var ticket struct {
				ID string `json:"id"`
			}
			if status != http.StatusCreated || json.Unmarshal(env.Data, &ticket) != nil {
				return loadtest.Outcome(strconv.Itoa(status)), nil
			}
			holders[i].ticketID = ticket.ID
			return "created", nil
		}
	}

	result := loadtest.NewRunner("ticket purchase", concurrency).Run(ctx, requests)
	if result.Outcomes["created"] != users {
		result.Print(os.Stdout)
		return nil, fmt.Errorf("only %d of %d tickets created", result.Outcomes["created"], users)
	}
	return holders, nil
}

func (c *client) token(userID string, role int) string {
	token, _, err := utils.GenerateToken(c.secret, userID, role, time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

// do 发送请求；被限流时退避重试，请求未被处理所以不影响计数
func (c *client) do(ctx context.Context, method, path, token string, payload interface{}) (int, envelope, error) {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return 0, envelope{}, err
		}
	}

	for attempt := 1; ; attempt++ {
		status, env, err := c.send(ctx, method, path, token, raw)
		if err != nil || status != http.StatusTooManyRequests || attempt == maxAttempts {
			return status, env, err
		}
		select {
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		case <-ctx.Done():
			return status, env, ctx.Err()
		}
	}
}

func (c *client) send(ctx context.Context, method, path, token string, payload []byte) (int, envelope, error) {
	var env envelope
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, env, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, env, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, env, err
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, env, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, env, nil
}

func verdict(ok bool) bool {
	if ok {
		fmt.Println("结果: PASS")
	} else {
		fmt.Println("结果: FAIL")
	}
	return ok
}
