package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matrixSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stationmatrix_saves_total",
		Help: "Matrix saves by scope (row, all) and result.",
	}, []string{"scope", "result"})

	sessionMounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stationmatrix_session_mounts_total",
		Help: "Session mounts by source (cache, reload).",
	}, []string{"source"})

	workflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stationmatrix_workflow_runs_total",
		Help: "Duplication and lifecycle workflow runs by workflow and result.",
	}, []string{"workflow", "result"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stationmatrix_notifications_total",
		Help: "Transfer notifications by channel and status.",
	}, []string{"channel", "status"})

	openSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stationmatrix_open_sessions",
		Help: "Matrix sessions currently held in memory.",
	})
)
