package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/ranking"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.JWTSecret = "test-secret"
	cfg.DBDSN = "file:" + filepath.Join(t.TempDir(), "ladder.db") + "?_busy_timeout=5000"
	cfg.DBMaxOpen = 1
	cfg.DBMaxIdle = 1
	cfg.WorkerCount = 2
	cfg.EventQueueSize = 100
	cfg.DedupeSize = 100
	return cfg
}

type client struct {
	svc *service.Service
	mux *http.ServeMux
}

func newClient(svc *service.Service) *client {
	mux := http.NewServeMux()
	So(svc.Register(context.Background(), mux), ShouldBeNil)
	return &client{svc: svc, mux: mux}
}

func (c *client) do(method, target, body, player string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	token, err := c.svc.Authenticator().IssueToken(player, time.Minute)
	So(err, ShouldBeNil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c.mux.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec.Code, out
}

func (c *client) submit(player string, score, level int, at time.Time) (int, map[string]interface{}) {
	body := fmt.Sprintf(`{"playerId":%q,"score":%d,"metadata":{"level":%d,"timespent":30},"timestamp":%q}`,
		player, score, level, at.UTC().Format(time.RFC3339Nano))
	return c.do(http.MethodPost, "/scores", body, player)
}

// eventually polls cond until it holds or two seconds pass.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func durableTotal(svc *service.Service, player string) int64 {
	total, _, err := svc.Ledger().TotalScore(context.Background(), player)
	So(err, ShouldBeNil)
	return total
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		svc := service.New(testConfig(t))

		Convey("Then stats report it as stopped", func() {
			stats, err := svc.GetStats(context.Background())
			So(err, ShouldBeNil)
			So(stats["started"], ShouldEqual, false)
		})

		Convey("Then routes cannot be registered", func() {
			So(svc.Register(context.Background(), http.NewServeMux()), ShouldEqual, service.ErrNotStarted)
		})

		Convey("Then stopping is a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})

	Convey("Given Redis is configured but unreachable", t, func() {
		cfg := testConfig(t)
		cfg.RedisAddr = "127.0.0.1:1"
		svc := service.New(cfg)

		Convey("Then start fails", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ping redis")
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	backends := []struct {
		name string
		opts func(t *testing.T) []service.Option
	}{
		{name: "in-process stores", opts: func(*testing.T) []service.Option { return nil }},
		{name: "redis stores", opts: func(t *testing.T) []service.Option {
			mr := miniredis.RunT(t)
			rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rc.Close() })
			return []service.Option{service.WithRedisClient(rc)}
		}},
	}

	for _, b := range backends {
		Convey("Given a started service with "+b.name, t, func() {
			ctx := context.Background()
			cfg := testConfig(t)
			svc := service.New(cfg, b.opts(t)...)
			So(svc.Start(ctx), ShouldBeNil)
			stopped := false
			defer func() {
				if !stopped {
					svc.Stop()
				}
			}()

			alice, err := svc.Ledger().CreatePlayer(ctx, "0xA11CE00000000000000000000000000000000001")
			So(err, ShouldBeNil)
			bob, err := svc.Ledger().CreatePlayer(ctx, "0xB0B0000000000000000000000000000000000002")
			So(err, ShouldBeNil)
			c := newClient(svc)
			now := time.Now().UTC()

			Convey("When players submit scores", func() {
				code, body := c.submit(alice.ID, 300, 1, now)
				So(code, ShouldEqual, http.StatusCreated)
				So(body["totalScore"], ShouldEqual, 300)
				So(body["rank"], ShouldEqual, 1)

				code, body = c.submit(bob.ID, 500, 1, now)
				So(code, ShouldEqual, http.StatusCreated)
				So(body["rank"], ShouldEqual, 1)

				code, body = c.submit(alice.ID, 250, 2, now.Add(time.Second))
				So(code, ShouldEqual, http.StatusCreated)
				So(body["totalScore"], ShouldEqual, 550)
				So(body["rank"], ShouldEqual, 1)

				Convey("Then the events become durable", func() {
					So(eventually(func() bool { return durableTotal(svc, alice.ID) == 550 }), ShouldBeTrue)
					So(eventually(func() bool { return durableTotal(svc, bob.ID) == 500 }), ShouldBeTrue)
				})

				Convey("Then the leaderboard and surroundings reflect them", func() {
					So(eventually(func() bool {
						code, page := c.do(http.MethodGet, "/leaderboard?timeframe=daily", "", alice.ID)
						if code != http.StatusOK || page["total"] != 2.0 {
							return false
						}
						first := page["items"].([]interface{})[0].(map[string]interface{})
						return first["playerId"] == alice.ID && first["totalScore"] == 550.0
					}), ShouldBeTrue)

					code, surround := c.do(http.MethodGet, "/leaderboard/player", "", bob.ID)
					So(code, ShouldEqual, http.StatusOK)
					So(surround["player"].(map[string]interface{})["rank"], ShouldEqual, 2)
					above := surround["surrounding"].(map[string]interface{})["above"].([]interface{})
					So(above, ShouldHaveLength, 1)
					So(above[0].(map[string]interface{})["playerId"], ShouldEqual, alice.ID)
				})

				Convey("Then an oversized page request is clamped", func() {
					code, page := c.do(http.MethodGet, "/leaderboard?limit=5000", "", alice.ID)
					So(code, ShouldEqual, http.StatusOK)
					So(page["limit"], ShouldEqual, 1000.0)
				})

				Convey("Then a replay is rejected as a duplicate", func() {
					code, body := c.submit(alice.ID, 100, 3, now.Add(time.Second))
					So(code, ShouldEqual, http.StatusBadRequest)
					So(body["code"], ShouldEqual, "duplicate")
				})

				Convey("Then stats describe the ranked set", func() {
					stats, err := svc.GetStats(ctx)
					So(err, ShouldBeNil)
					So(stats["started"], ShouldEqual, true)
					So(stats["rankset"].(ranking.Stats).Size, ShouldEqual, 2)
				})

				Convey("Then a restarted service rebuilds ranks from the ledger", func() {
					So(eventually(func() bool { return durableTotal(svc, alice.ID) == 550 }), ShouldBeTrue)
					svc.Stop()
					stopped = true

					again := service.New(cfg, b.opts(t)...)
					So(again.Start(ctx), ShouldBeNil)
					defer again.Stop()
					stats, err := again.GetStats(ctx)
					So(err, ShouldBeNil)
					rs := stats["rankset"].(ranking.Stats)
					So(rs.Size, ShouldEqual, 2)
					So(rs.Top[0].PlayerID, ShouldEqual, alice.ID)
					So(rs.Top[0].TotalScore, ShouldEqual, 550)
				})
			})

			Convey("When someone submits for another player", func() {
				body := fmt.Sprintf(`{"playerId":%q,"score":1,"metadata":{"level":1,"timespent":30},"timestamp":%q}`,
					alice.ID, now.Format(time.RFC3339Nano))
				code, _ := c.do(http.MethodPost, "/scores", body, bob.ID)

				Convey("Then it is forbidden", func() {
					So(code, ShouldEqual, http.StatusForbidden)
				})
			})

			Convey("When an unregistered player submits", func() {
				code, _ := c.submit("ghost", 10, 1, now)

				Convey("Then it is not found", func() {
					So(code, ShouldEqual, http.StatusNotFound)
				})
			})
		})
	}
}
