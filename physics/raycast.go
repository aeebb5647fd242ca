package physics

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp/v2"
	"go.uber.org/zap"
)

// allCategories is the request-side category set for ray casts: the shape's
// own mask is tested against all bits, so only shapes with an empty mask are
// unhittable.
const allCategories = uint(0xffff)

// RayCastRequest describes one ray cast. From and To are in world units;
// Mask selects the category bits the ray may hit; IgnoredOwner excludes one
// body's owner. UserID and UserData ride along for callers that correlate
// asynchronous responses.
type RayCastRequest struct {
	From         cp.Vector
	To           cp.Vector
	Mask         uint16
	IgnoredOwner any
	UserID       uint32
	UserData     any
}

// RayCastResponse is the result of one ray cast. On a miss only Hit is
// meaningful.
type RayCastResponse struct {
	Fraction float64
	Position cp.Vector
	Normal   cp.Vector
	Owner    any
	Group    uint16
	Hit      bool
}

// RayCast runs a ray cast immediately and returns the closest hit. Sensors
// never hit, nor does the body owned by req.IgnoredOwner.
func (w *World) RayCast(req RayCastRequest) (RayCastResponse, bool) {
	best := RayCastResponse{Fraction: 1}
	if req.To.Sub(req.From).LengthSq() <= 0 {
		w.log.Warn("Ray had 0 length when ray casting, ignoring request.")
		return best, false
	}
	w.segmentQuery(req, func(resp RayCastResponse) {
		if !best.Hit || resp.Fraction < best.Fraction {
			best = resp
		}
	})
	return best, best.Hit
}

// RayCastAll runs a ray cast immediately and returns every hit, closest
// first.
func (w *World) RayCastAll(req RayCastRequest) []RayCastResponse {
	if req.To.Sub(req.From).LengthSq() <= 0 {
		w.log.Warn("Ray had 0 length when ray casting, ignoring request.")
		return nil
	}
	var hits []RayCastResponse
	w.segmentQuery(req, func(resp RayCastResponse) {
		hits = append(hits, resp)
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].Fraction < hits[j].Fraction })
	return hits
}

// RequestRayCast queues a ray cast for the next step, where it runs in
// closest mode and answers through the step's RayCast callback. Zero-length
// rays and requests past the queue limit are dropped with a warning.
func (w *World) RequestRayCast(req RayCastRequest) error {
	if req.To.Sub(req.From).LengthSq() <= 0 {
		w.log.Warn("Ray had 0 length when ray casting, ignoring request.")
		return ErrZeroRay
	}
	limit := w.ctx.settings.RayCastLimit
	if limit <= 0 || len(w.rayQueue) >= limit {
		w.log.Warn("Ray cast query buffer is full, ignoring request.", zap.Int("limit", limit))
		return fmt.Errorf("%w: limit %d", ErrQueueFull, limit)
	}
	w.rayQueue = append(w.rayQueue, req)
	return nil
}

// segmentQuery walks the shapes along the ray, applying the filter rules
// shared by every ray-cast mode, and hands qualifying hits to fn in
// traversal order.
func (w *World) segmentQuery(req RayCastRequest, fn func(RayCastResponse)) {
	from := w.ctx.toSim(req.From)
	to := w.ctx.toSim(req.To)
	filter := cp.ShapeFilter{
		Group:      cp.NO_GROUP,
		Categories: allCategories,
		Mask:       uint(req.Mask),
	}
	invScale := w.ctx.invScale
	w.space.SegmentQuery(from, to, 0, filter, func(shape *cp.Shape, point, normal cp.Vector, alpha float64, _ interface{}) {
		if shape.Sensor() {
			return
		}
		b, ok := shape.UserData.(*Body)
		if !ok {
			return
		}
		if req.IgnoredOwner != nil && b.owner == req.IgnoredOwner {
			return
		}
		fn(RayCastResponse{
			Fraction: alpha,
			Position: point.Mult(invScale),
			Normal:   normal,
			Owner:    b.owner,
			Group:    uint16(shape.Filter.Categories),
			Hit:      true,
		})
	}, nil)
}
