package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	config "github.com/voysta/game-services/configs"
	"github.com/voysta/game-services/internal/client"
	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/game"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "gamebot"

func init() {
	instanceId := "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// Bot names - mixed to look like real room guests
var botNames = []string{
	"Abelo", "meron", "dawit", "liya", "ted",
	"yonas", "Eden", "rahel", "Bethel", "Natan",
}

var botActions = []string{
	game.ActionTap, game.ActionTap, game.ActionTap,
	game.ActionCombo, game.ActionSuper, game.ActionDraw,
}

func main() {
	log.Printf("Starting Game Bot...")

	apiURL := envOr("GAME_API_URL", "http://localhost:8080")
	wsURL := envOr("GAME_WS_URL", "ws://localhost:8081/v1/ws")
	roomId := envOr("BOT_ROOM_ID", "room-demo")
	token := os.Getenv("BOT_JWT")

	grant, err := requestSession(apiURL, token, roomId)
	if err != nil {
		log.Fatalf("Failed to obtain game session: %v", err)
	}
	log.Infof("session %s issued for room %s, expires %s", grant.SessionId, grant.RoomId, grant.ExpiresAt)

	ctx := context.Background()

	bridge := client.NewBridge(client.NewWSTransport(wsURL))
	if err := bridge.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect transport: %v", err)
	}
	defer bridge.Disconnect()

	name := botNames[rand.Intn(len(botNames))]
	if err := bridge.Join(ctx, grant.RoomId, grant.UserId, grant.SessionId, name); err != nil {
		log.Fatalf("Failed to join room: %v", err)
	}

	time.Sleep(time.Second)
	if err := bridge.Start(ctx); err != nil {
		log.Errorf("start failed: %v", err)
	}

	// play a short round of random actions under the client throttle
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		action := botActions[rand.Intn(len(botActions))]
		err := bridge.SendAction(ctx, action, nil)
		if err == client.ErrThrottled {
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if err != nil {
			log.Errorf("action dispatch failed: %v", err)
			break
		}

		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}

	if err := bridge.End(ctx); err != nil {
		log.Errorf("end failed: %v", err)
	}

	time.Sleep(time.Second)
	ui := bridge.UI()
	log.Infof("bot %s finished: phase=%s score=%d pot=%d message=%q",
		name, ui.Phase, ui.Score, ui.Pot, ui.Message)

	bridge.Leave(ctx)
}

func requestSession(apiURL, token, roomId string) (*comm.SessionGrant, error) {
	body, _ := json.Marshal(map[string]string{"room_id": roomId})

	req, err := http.NewRequest(http.MethodPost, apiURL+"/v1/games/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Data  *comm.SessionGrant `json:"data"`
		Error string             `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK || parsed.Data == nil {
		return nil, fmt.Errorf("session request rejected: %d %s", resp.StatusCode, parsed.Error)
	}

	return parsed.Data, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
