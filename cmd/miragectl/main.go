// miragectl is a terminal chat client for a mirage server: it logs in,
// polls for queued lines, and sends whatever you type. Lines starting with
// "/" go down the command channel.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type clientConfig struct {
	ServerURL    string        `envconfig:"MIRAGE_URL" default:"http://localhost:6667"`
	Username     string        `envconfig:"MIRAGE_USERNAME" required:"true"`
	Password     string        `envconfig:"MIRAGE_PASSWORD" required:"true"`
	PollInterval time.Duration `envconfig:"MIRAGE_POLL_INTERVAL" default:"2s"`
}

type client struct {
	base    string
	token   string
	channel string
	http    *http.Client
}

func main() {
	_ = godotenv.Load()
	var config clientConfig
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	c := &client{
		base:    strings.TrimRight(config.ServerURL, "/"),
		channel: "#general",
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	username, rooms, err := c.login(config.Username, config.Password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	color.Green.Printf("Logged in as %s\n", username)

	if err := c.printRoomTable(); err != nil {
		color.Yellow.Printf("room listing failed: %v\n", err)
	}
	if len(rooms) > 0 {
		c.channel = rooms[0]
	}
	color.Cyan.Printf("Current channel: %s\n", c.channel)

	go c.pollLoop(config.PollInterval)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if err := c.send(line); err != nil {
			color.Red.Printf("error: %v\n", err)
		}
	}

	if err := c.logout(); err != nil {
		color.Yellow.Printf("logout failed: %v\n", err)
	}
}

func (c *client) login(username, password string) (string, []string, error) {
	var resp struct {
		Token    string   `json:"token"`
		Username string   `json:"username"`
		Rooms    []string `json:"rooms"`
	}
	err := c.post("/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return "", nil, err
	}
	c.token = resp.Token
	return resp.Username, resp.Rooms, nil
}

func (c *client) logout() error {
	return c.post("/api/logout", map[string]string{}, nil)
}

// send routes a typed line: slash lines down the command channel, the rest as
// chat into the current channel. A /join or /part moves the channel.
func (c *client) send(line string) error {
	kind := "message"
	if strings.HasPrefix(line, "/") {
		kind = "command"
	}
	var resp struct {
		Channel string `json:"channel"`
	}
	err := c.post("/api/message", map[string]string{
		"type":    kind,
		"content": line,
		"channel": c.channel,
	}, &resp)
	if err != nil {
		return err
	}
	if kind == "command" && resp.Channel != c.channel {
		c.channel = resp.Channel
		if c.channel == "" {
			color.Cyan.Println("Left channel")
		} else {
			color.Cyan.Printf("Current channel: %s\n", c.channel)
		}
	}
	return nil
}

func (c *client) pollLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var resp struct {
			Messages []string `json:"messages"`
		}
		if err := c.get("/api/poll", &resp); err != nil {
			color.Red.Printf("poll failed: %v\n", err)
			continue
		}
		for _, line := range resp.Messages {
			if strings.Contains(line, "] * ") {
				color.Gray.Println(line)
			} else {
				fmt.Println(line)
			}
		}
	}
}

func (c *client) printRoomTable() error {
	var resp struct {
		Rooms []struct {
			ID      int64  `json:"room_id"`
			Name    string `json:"name"`
			Topic   string `json:"topic"`
			Members int    `json:"members"`
			Private bool   `json:"is_private"`
			Joined  bool   `json:"joined"`
		} `json:"rooms"`
	}
	if err := c.get("/api/rooms", &resp); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Room", "Topic", "Members", "Private", "Joined"})
	for _, room := range resp.Rooms {
		table.Append([]string{
			strconv.FormatInt(room.ID, 10),
			room.Name,
			room.Topic,
			strconv.Itoa(room.Members),
			strconv.FormatBool(room.Private),
			strconv.FormatBool(room.Joined),
		})
	}
	table.Render()
	return nil
}

func (c *client) post(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
