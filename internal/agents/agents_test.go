package agents

import (
	"testing"

	"github.com/talgya/contagion/internal/arena"
	"github.com/talgya/contagion/internal/disease"
	"github.com/talgya/contagion/internal/entropy"
)

var testRules = Rules{
	RecoveryTime:      10,
	DeathRate:         0.5,
	DeathTime:         5,
	CareRecoveryBonus: 3,
	CareLifeSaveRate:  0.5,
}

var testBounds = arena.NewBounds(100, 100, 8)

func sickAgent(willDie bool) *Agent {
	return &Agent{X: 50, Y: 50, DX: 2, DY: 2, Status: disease.Sick, WillDie: willDie}
}

func TestSpawnerCreatesHealthyAgentsInside(t *testing.T) {
	sp := NewSpawner(testBounds, nil, 2, entropy.Seeded(9))
	pop := sp.SpawnPopulation(50)
	if len(pop) != 50 {
		t.Fatalf("spawned %d agents, want 50", len(pop))
	}
	for i, a := range pop {
		if a.Index != i {
			t.Fatalf("agent %d has index %d", i, a.Index)
		}
		if a.Status != disease.Healthy || a.InCare || a.WillDie {
			t.Fatalf("agent %d not fresh: %+v", i, a)
		}
		if !testBounds.Contains(a.X, a.Y) {
			t.Fatalf("agent %d spawned outside: (%v, %v)", i, a.X, a.Y)
		}
		if (a.DX != 2 && a.DX != -2) || (a.DY != 2 && a.DY != -2) {
			t.Fatalf("agent %d velocity (%v, %v)", i, a.DX, a.DY)
		}
	}
}

func TestSpawnerDirectionDraws(t *testing.T) {
	// x, y, then flip-x (>= 0.5 flips), flip-y.
	sp := NewSpawner(testBounds, nil, 3, entropy.NewSequence(0, 0, 0.5, 0.2))
	a := sp.SpawnPopulation(1)[0]
	if a.DX != -3 || a.DY != 3 {
		t.Fatalf("velocity (%v, %v), want (-3, 3)", a.DX, a.DY)
	}
}

func TestSickenDrawsPrognosisOnce(t *testing.T) {
	a := &Agent{Status: disease.Healthy}
	a.Sicken(testRules, entropy.NewSequence(0.1))
	if a.Status != disease.Sick || a.IllnessAge != 0 || !a.WillDie {
		t.Fatalf("unexpected agent after sicken: %+v", a)
	}

	b := &Agent{Status: disease.Healthy}
	b.Sicken(testRules, entropy.NewSequence(0.9))
	if b.WillDie {
		t.Fatal("0.9 >= death rate 0.5 should not doom the agent")
	}
}

func TestSickenPanicsWhenNotInfectable(t *testing.T) {
	for _, s := range []disease.Status{disease.Sick, disease.Recovered, disease.Saved, disease.DiedInCare, disease.DiedWithoutCare} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("sicken on %s did not panic", s)
				}
			}()
			a := &Agent{Status: s}
			a.Sicken(testRules, entropy.NewSequence())
		}()
	}
}

func TestCanBeInfectedNow(t *testing.T) {
	want := map[disease.Status]bool{
		disease.Healthy:    true,
		disease.Incubating: true,
	}
	for _, s := range disease.All {
		a := &Agent{Status: s}
		if a.CanBeInfectedNow() != want[s] {
			t.Fatalf("%s: CanBeInfectedNow=%v", s, a.CanBeInfectedNow())
		}
	}
}

func TestRecoversExactlyAtRecoveryTime(t *testing.T) {
	a := sickAgent(false)
	for i := 1; i < testRules.RecoveryTime; i++ {
		a.Tick(testRules, testBounds, entropy.NewSequence())
		if a.Status != disease.Sick {
			t.Fatalf("recovered early at age %d", a.IllnessAge)
		}
	}
	a.Tick(testRules, testBounds, entropy.NewSequence())
	if a.Status != disease.Recovered || a.IllnessAge != testRules.RecoveryTime {
		t.Fatalf("status %s at age %d, want Recovered at %d", a.Status, a.IllnessAge, testRules.RecoveryTime)
	}
}

func TestCareShortensRecovery(t *testing.T) {
	a := sickAgent(false)
	a.InCare = true
	want := testRules.RecoveryTime - testRules.CareRecoveryBonus
	for a.Status == disease.Sick {
		a.Tick(testRules, testBounds, entropy.NewSequence())
	}
	if a.IllnessAge != want {
		t.Fatalf("recovered at age %d, want %d", a.IllnessAge, want)
	}
	if a.InCare {
		t.Fatal("recovery should release the care slot")
	}
}

func TestEffectiveRecoveryTimeClampsAtZero(t *testing.T) {
	r := testRules
	r.CareRecoveryBonus = 50
	if got := EffectiveRecoveryTime(r, true); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
	if got := EffectiveRecoveryTime(r, false); got != r.RecoveryTime {
		t.Fatalf("got %d, want %d", got, r.RecoveryTime)
	}

	a := sickAgent(false)
	a.InCare = true
	a.Tick(r, testBounds, entropy.NewSequence())
	if a.Status != disease.Recovered {
		t.Fatalf("status %s, want immediate recovery", a.Status)
	}
}

func TestWillDieNeverRecovers(t *testing.T) {
	r := testRules
	r.RecoveryTime = 1
	r.DeathTime = 4
	a := sickAgent(true)
	for i := 0; i < 3; i++ {
		a.Tick(r, testBounds, entropy.NewSequence())
		if a.Status != disease.Sick {
			t.Fatalf("tick %d: status %s, want Sick", i+1, a.Status)
		}
	}
	a.Tick(r, testBounds, entropy.NewSequence())
	if a.Status != disease.DiedWithoutCare {
		t.Fatalf("status %s, want DiedWithoutCare", a.Status)
	}
}

func TestDeathInCareOutcomes(t *testing.T) {
	saved := sickAgent(true)
	saved.InCare = true
	saved.IllnessAge = testRules.DeathTime - 1
	saved.Tick(testRules, testBounds, entropy.NewSequence(0.2))
	if saved.Status != disease.Saved || saved.InCare {
		t.Fatalf("want Saved and out of care, got %s inCare=%v", saved.Status, saved.InCare)
	}

	lost := sickAgent(true)
	lost.InCare = true
	lost.IllnessAge = testRules.DeathTime - 1
	lost.Tick(testRules, testBounds, entropy.NewSequence(0.8))
	if lost.Status != disease.DiedInCare || !lost.InCare {
		t.Fatalf("want DiedInCare holding its slot, got %s inCare=%v", lost.Status, lost.InCare)
	}
	if lost.NeedsCare() {
		t.Fatal("a resolved death no longer needs care")
	}
}

func TestInfectiousAgentsDoNotMove(t *testing.T) {
	a := sickAgent(false)
	for i := 0; i < 3; i++ {
		a.Tick(testRules, testBounds, entropy.NewSequence())
		if a.X != 50 || a.Y != 50 {
			t.Fatalf("infectious agent moved to (%v, %v)", a.X, a.Y)
		}
	}
}

func TestDeadAgentsAreInert(t *testing.T) {
	a := &Agent{X: 10, Y: 10, DX: 2, DY: 2, Status: disease.DiedWithoutCare, IllnessAge: 7}
	a.Tick(testRules, testBounds, entropy.NewSequence())
	if a.X != 10 || a.Y != 10 || a.IllnessAge != 7 {
		t.Fatalf("dead agent changed: %+v", a)
	}
}

func TestMovementReflectsPerAxis(t *testing.T) {
	a := &Agent{X: 95, Y: 95, DX: 2, DY: 2, Status: disease.Healthy}
	a.Tick(testRules, testBounds, entropy.NewSequence())
	if a.X != 97 || a.Y != 97 {
		t.Fatalf("position (%v, %v), want (97, 97)", a.X, a.Y)
	}
	if a.DX != -2 || a.DY != -2 {
		t.Fatalf("corner should invert both axes, got (%v, %v)", a.DX, a.DY)
	}

	b := &Agent{X: 5, Y: 50, DX: -2, DY: 2, Status: disease.Recovered}
	b.Tick(testRules, testBounds, entropy.NewSequence())
	if b.DX != 2 || b.DY != 2 {
		t.Fatalf("left edge should invert x only, got (%v, %v)", b.DX, b.DY)
	}
}

func TestReactToBouncesAndInfects(t *testing.T) {
	healthy := &Agent{DX: 2, DY: -2, Status: disease.Healthy}
	sick := &Agent{DX: -2, DY: 2, Status: disease.Sick}
	src := entropy.NewSequence(0.9)

	if !healthy.ReactTo(sick, testRules, src) {
		t.Fatal("healthy agent should be infected by sick contact")
	}
	if sick.ReactTo(healthy, testRules, src) {
		t.Fatal("sick agent cannot be infected")
	}
	if healthy.DX != -2 || healthy.DY != 2 || sick.DX != 2 || sick.DY != -2 {
		t.Fatal("both agents should bounce")
	}
	if healthy.Status != disease.Sick {
		t.Fatalf("status %s, want Sick", healthy.Status)
	}
}

func TestReactToHealthyPairOnlyBounces(t *testing.T) {
	a := &Agent{DX: 1, DY: 1, Status: disease.Healthy}
	b := &Agent{DX: 1, DY: 1, Status: disease.Recovered}
	src := entropy.NewSequence()
	if a.ReactTo(b, testRules, src) || b.ReactTo(a, testRules, src) {
		t.Fatal("no infection expected")
	}
	if src.Drawn() != 0 {
		t.Fatal("a bounce must not consume randomness")
	}
}

func TestBoxOverlap(t *testing.T) {
	a := &Agent{X: 10, Y: 10}
	b := &Agent{X: 18, Y: 10}
	c := &Agent{X: 18.5, Y: 10}
	if !a.Bounds(8).Overlaps(b.Bounds(8)) {
		t.Fatal("touching boxes should overlap")
	}
	if a.Bounds(8).Overlaps(c.Bounds(8)) {
		t.Fatal("separated boxes should not overlap")
	}
	if d := a.DistanceTo(&Agent{X: 13, Y: 14}); d != 5 {
		t.Fatalf("distance %v, want 5", d)
	}
}
