// Package cil implements the Central Intelligence Layer: a learning and
// prediction kernel that turns streams of detected chart patterns into
// scored predictions, tracks their outcomes, and braids clusters of
// reviewed predictions into higher-level trading lessons (prediction_review
// strands one braid level up, carrying a learning-braid payload).
//
// Every fact the kernel knows is a Strand appended to a StrandStore. This
// file re-exports the vocabulary a library consumer needs to build and read
// strands without reaching into internal/domain directly.
package cil

import (
	app "github.com/smilemakc/cil/internal/application/cil"
	"github.com/smilemakc/cil/internal/domain"
)

// Kind discriminates the shape of a strand's content.
type Kind = domain.Kind

// Strand kind constants, re-exported for library consumers.
const (
	KindPattern = domain.KindPattern
	KindPatternOverview = domain.KindPatternOverview
	KindPrediction = domain.KindPrediction
	KindPredictionReview = domain.KindPredictionReview
	KindConditionalPlan = domain.KindConditionalPlan
	KindUncertainty = domain.KindUncertainty
	KindMotif = domain.KindMotif
	KindLearningBraid = domain.KindLearningBraid
	KindMetaSignal = domain.KindMetaSignal
)

// TrackingStatus is the lifecycle state of a time-bound strand.
type TrackingStatus = domain.TrackingStatus

// Tracking status constants.
const (
	StatusActive = domain.StatusActive
	StatusCompleted = domain.StatusCompleted
	StatusExpired = domain.StatusExpired
	StatusCancelled = domain.StatusCancelled
)

// ClusterType and its constants classify the tagged-sum families a strand's
// cluster slots can belong to.
type ClusterType = domain.ClusterType

// Cluster family constants.
const (
	ClusterPatternTimeframe = domain.ClusterPatternTimeframe
	ClusterAsset = domain.ClusterAsset
	ClusterTimeframe = domain.ClusterTimeframe
	ClusterOutcome = domain.ClusterOutcome
	ClusterPattern = domain.ClusterPattern
	ClusterGroupType = domain.ClusterGroupType
	ClusterMethod = domain.ClusterMethod
)

// Strand, Params, Content and the typed content payloads are the building
// blocks of every strand. Strand itself is already a plain exported struct
// with a full accessor set, so no interface wrapper is needed here.
type (
	Strand = domain.Strand
	Params = domain.Params
	Content = domain.Content

	Lineage = domain.Lineage
	ResonanceState = domain.ResonanceState
	Telemetry = domain.Telemetry
	Scores = domain.Scores
	ClusterSlot = domain.ClusterSlot
	ClusterSlots = domain.ClusterSlots
	ClusterSlotKey = domain.ClusterSlotKey

	PatternContent = domain.PatternContent
	PredictionContent = domain.PredictionContent
	PredictionReviewContent = domain.PredictionReviewContent
	ConditionalPlanContent = domain.ConditionalPlanContent
	LearningBraidContent = domain.LearningBraidContent
	UncertaintyContent = domain.UncertaintyContent
)

// StrandStore is the append-only storage port every CIL component reads
// from and writes to.
type StrandStore = domain.StrandStore

// QueryFilter and MutablePatch describe a store query and an in-place
// mutation of a strand's mutable fields, respectively.
type (
	QueryFilter = domain.QueryFilter
	MutablePatch = domain.MutablePatch
)

// New builds a fresh Strand from params, stamping it with a new ID and
// created_at/updated_at. It is a thin re-export of domain.New so callers
// observing raw patterns (C1) don't need to import internal/domain.
var New = domain.New

// EncodeContent marshals a typed content payload (e.g. PatternContent) into
// the generic Content map a Strand stores.
var EncodeContent = domain.EncodeContent

// PatternObservation, Group and GroupCode are the group-assembly (C2)
// vocabulary: a PatternObservation is one leaf pattern strand as seen by the
// assembler, and a Group is one of the up to six shapes it produces.
type (
	PatternObservation = app.PatternObservation
	Group = app.Group
	GroupCode = app.GroupCode
)

// Group shape constants.
const (
	GroupCodeA = app.GroupCodeA
	GroupCodeB = app.GroupCodeB
	GroupCodeC = app.GroupCodeC
	GroupCodeD = app.GroupCodeD
	GroupCodeE = app.GroupCodeE
	GroupCodeF = app.GroupCodeF
)

// Signature builds the deterministic, reordering-invariant signature for a
// group of constituent patterns.
var Signature = app.Signature

// GroupAssembler turns one asset's freshly observed leaf patterns into the
// up to six group shapes C4 predicts over.
type GroupAssembler = app.GroupAssembler

// NewGroupAssembler builds a GroupAssembler.
func NewGroupAssembler() *GroupAssembler {
	return app.NewGroupAssembler()
}

// LLMPort and MarketDataPort are the external collaborators a Kernel can be
// given through WithLLM/WithMarketData: an LLM vendor adapter and an
// OHLCV source, respectively.
type (
	LLMPort = app.LLMPort
	MarketDataPort = app.MarketDataPort
	OHLCVBar = app.OHLCVBar
)

// Clock abstracts time for the dispatcher's sweeps; SystemClock is the
// production implementation.
type Clock = app.Clock

// SystemClock is the production Clock, backed by time.Now.
type SystemClock = app.SystemClock
