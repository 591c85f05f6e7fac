package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// sim-bot subscribes to a table and throws a random bet into every betting
// window. Handy for exercising a local server and watching the event stream.

type subscribe struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
}

type event struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
	RoundID string `json:"round_id"`
	Payload struct {
		Phase   string `json:"phase"`
		Outcome string `json:"outcome"`
	} `json:"payload"`
}

type placeBet struct {
	AccountID string `json:"account_id"`
	Selection string `json:"selection"`
	StakeCC   int64  `json:"stake_cc"`
}

func main() {
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")
	apiURL := getenv("API_URL", "http://localhost:8080")
	tableID := getenv("TABLE_ID", "color-main")
	accountID := getenv("ACCOUNT_ID", "sim-bot")
	selections := strings.Split(getenv("SELECTIONS", "red,black,gold"), ",")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	msg, _ := json.Marshal(subscribe{Type: "subscribe", TableID: tableID})
	_ = conn.WriteMessage(websocket.TextMessage, msg)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	betRound := ""
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		switch {
		case ev.Type == "round_update" && ev.Payload.Phase == "open" && ev.RoundID != betRound:
			betRound = ev.RoundID
			sel := selections[rnd.Intn(len(selections))]
			stake := int64(50 + rnd.Intn(10)*50)
			if err := bet(apiURL, tableID, placeBet{AccountID: accountID, Selection: sel, StakeCC: stake}); err != nil {
				log.Printf("bet failed: %v", err)
				continue
			}
			log.Printf("bet %d on %q round %s", stake, sel, ev.RoundID)
		case ev.Type == "result":
			log.Printf("round %s resolved: %s", ev.RoundID, ev.Payload.Outcome)
		}
	}
}

func bet(apiURL, tableID string, req placeBet) error {
	body, _ := json.Marshal(req)
	resp, err := http.Post(fmt.Sprintf("%s/api/tables/%s/bets", apiURL, tableID), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
