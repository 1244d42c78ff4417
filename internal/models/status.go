package models

import "time"

type QueueStatus struct {
	ID                string    `json:"id"`
	Position          int       `json:"position"`
	EstimatedWaitTime int       `json:"estimatedWaitTime"`
	NextCheckInTime   time.Time `json:"nextCheckInTime"`
	Status            string    `json:"status"`
}

type ListItem struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	WaitTime int    `json:"waitTime"`
	Status   string `json:"status"`
}

type QueueStats struct {
	AvgWaitTime    int `json:"avgWaitTime"`
	TotalUsers     int `json:"totalUsers"`
	CompletionRate int `json:"completionRate"`
}
