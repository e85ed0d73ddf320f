// Copyright 2025 The CivicMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the stored complaint locations and their hotspots
// over HTTP.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/civicmap/civicmap/complaints"
	"github.com/civicmap/civicmap/config"
	"github.com/civicmap/civicmap/hotspot"
	"github.com/civicmap/civicmap/spatial"
	"github.com/gin-gonic/gin"
)

const (
	googleTileURL     = "https://mt1.google.com/vt/lyrs=m&x={x}&y={y}&z={z}"
	googleAttribution = `&copy; <a href="https://www.google.com/maps">Google Maps</a>`
	osmTileURL        = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	osmAttribution    = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
)

type Server struct {
	repo      complaints.LocationRepository
	cfg       *config.Config
	clusterer *hotspot.Clusterer
	metrics   *Metrics
	mapsKey   string
}

// NewServer creates a server reading locations from repo. The maps key is
// used for tile URLs only and may be empty.
func NewServer(repo complaints.LocationRepository, cfg *config.Config, metrics *Metrics, mapsKey string) *Server {
	if len(cfg.Server.Tokens) == 0 {
		log.Print("⚠️ No server.tokens configured, every /api request will be rejected")
	}

	return &Server{
		repo:      repo,
		cfg:       cfg,
		clusterer: hotspot.New(cfg.Clustering),
		metrics:   metrics,
		mapsKey:   mapsKey,
	}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(s.metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api", BearerAuth(s.cfg.Server.Tokens))
	api.GET("/complaints/locations", s.listLocations)
	api.GET("/hotspots", s.listHotspots)
	api.GET("/hotspots/primary", s.primaryHotspot)
	api.GET("/hotspots/localities", s.listLocalities)
	api.GET("/hotspots/cells", s.listCells)
	api.GET("/map/config", s.mapConfig)

	return r
}

func (s *Server) Run() error {
	log.Printf("Listening on %s", s.cfg.Server.Listen)

	return s.Router().Run(s.cfg.Server.Listen)
}

func (s *Server) listLocations(ctx *gin.Context) {
	locations, err := s.repo.ListLocations(complaints.LocationFilter{District: ctx.Query("district")})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "locations": locations})
}

// ClusterView is the JSON form of a hotspot.
type ClusterView struct {
	Center       spatial.Point    `json:"center"`
	Count        int              `json:"count"`
	District     string           `json:"district"`
	RadiusMeters float64          `json:"radius_meters"`
	Severity     hotspot.Severity `json:"severity"`
	Color        string           `json:"color"`
	ComplaintIDs []string         `json:"complaint_ids"`
}

func newClusterView(c *hotspot.Cluster) *ClusterView {
	severity := hotspot.SeverityFor(c.Count())

	return &ClusterView{
		Center:       c.Center,
		Count:        c.Count(),
		District:     c.District,
		RadiusMeters: c.DisplayRadiusMeters(),
		Severity:     severity,
		Color:        severity.Color(),
		ComplaintIDs: c.MemberIDs(),
	}
}

// HotspotsResponse is the body of GET /api/hotspots.
type HotspotsResponse struct {
	Success            bool           `json:"success"`
	Clusters           []*ClusterView `json:"clusters"`
	Focus              hotspot.View   `json:"focus"`
	Total              int            `json:"total"`
	InRegion           int            `json:"in_region"`
	OutsideRegion      int            `json:"outside_region"`
	WithoutCoordinates int            `json:"without_coordinates"`
}

type snapshot struct {
	total   int
	records []hotspot.Record
	places  []hotspot.Place
	outside int
}

func (s *Server) load(district string) (*snapshot, error) {
	locations, err := s.repo.ListLocations(complaints.LocationFilter{District: district})
	if err != nil {
		return nil, err
	}

	records, places, outside := complaints.Partition(locations, s.cfg.Region.Bounds)

	return &snapshot{
		total:   len(locations),
		records: records,
		places:  places,
		outside: outside,
	}, nil
}

func (s *Server) listHotspots(ctx *gin.Context) {
	snap, err := s.load(ctx.Query("district"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})

		return
	}

	clusters := s.clusterer.Cluster(snap.records)

	views := make([]*ClusterView, len(clusters))
	for i, c := range clusters {
		views[i] = newClusterView(c)
	}

	s.metrics.ObserveSnapshot(len(clusters), len(snap.records), len(snap.places))

	ctx.JSON(http.StatusOK, &HotspotsResponse{
		Success:            true,
		Clusters:           views,
		Focus:              hotspot.FocusFor(hotspot.Primary(clusters), s.cfg.DefaultView()),
		Total:              snap.total,
		InRegion:           len(snap.records),
		OutsideRegion:      snap.outside,
		WithoutCoordinates: len(snap.places),
	})
}

func (s *Server) primaryHotspot(ctx *gin.Context) {
	snap, err := s.load(ctx.Query("district"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})

		return
	}

	primary := s.clusterer.FindPrimaryHotspot(snap.records)

	var view *ClusterView
	if primary != nil {
		view = newClusterView(primary)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"hotspot": view,
		"focus":   hotspot.FocusFor(primary, s.cfg.DefaultView()),
	})
}

// LocalityView is the JSON form of a locality group.
type LocalityView struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	District     string   `json:"district"`
	Count        int      `json:"count"`
	Severity     string   `json:"severity"`
	ComplaintIDs []string `json:"complaint_ids"`
}

func (s *Server) listLocalities(ctx *gin.Context) {
	snap, err := s.load(ctx.Query("district"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})

		return
	}

	groups := hotspot.GroupByLocality(snap.places)
	views := make([]LocalityView, len(groups))

	for i, g := range groups {
		ids := make([]string, len(g.Members))
		for j, m := range g.Members {
			ids[j] = m.ID
		}

		views[i] = LocalityView{
			Key:          g.Key,
			Label:        g.Label,
			District:     g.District,
			Count:        g.Count(),
			Severity:     string(hotspot.SeverityFor(g.Count())),
			ComplaintIDs: ids,
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "localities": views})
}

func (s *Server) listCells(ctx *gin.Context) {
	maxRes := s.repo.H3Resolution()

	res := maxRes
	if v := ctx.Query("res"); v != "" {
		var err error

		res, err = strconv.Atoi(v)
		if err != nil || res < 0 || res > maxRes {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "res must be an integer between 0 and " + strconv.Itoa(maxRes)})

			return
		}
	}

	cells, err := s.repo.CountByCell(res)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, cells)
}

// MapConfig is the body of GET /api/map/config.
type MapConfig struct {
	Region      string         `json:"region"`
	TileURL     string         `json:"tile_url"`
	Attribution string         `json:"attribution"`
	MaxZoom     int            `json:"max_zoom"`
	Center      spatial.Point  `json:"center"`
	Zoom        int            `json:"zoom"`
	Bounds      spatial.Bounds `json:"bounds"`
}

func (s *Server) mapConfig(ctx *gin.Context) {
	mc := MapConfig{
		Region:      s.cfg.Region.Name,
		TileURL:     osmTileURL,
		Attribution: osmAttribution,
		MaxZoom:     19,
		Center:      s.cfg.Region.Center,
		Zoom:        s.cfg.Region.Zoom,
		Bounds:      s.cfg.Region.Bounds,
	}

	if s.mapsKey != "" {
		mc.TileURL = googleTileURL + "&key=" + url.QueryEscape(s.mapsKey)
		mc.Attribution = googleAttribution
		mc.MaxZoom = 20
	}

	ctx.JSON(http.StatusOK, mc)
}
