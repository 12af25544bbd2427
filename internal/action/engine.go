// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package action

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/item"
	"github.com/vestiary/vestiary/internal/pose"
	"github.com/vestiary/vestiary/internal/restriction"
	"github.com/vestiary/vestiary/internal/state"
)

var tracer = otel.Tracer("vestiary/action")

// Problem classifies why an action was not applied.
type Problem string

const (
	// ProblemPermission means the actor is not authorized.
	ProblemPermission Problem = "permission"
	// ProblemNotFound means a target, item, or asset did not resolve.
	ProblemNotFound Problem = "notFound"
	// ProblemInvalid means the mutation would produce an invalid state.
	ProblemInvalid Problem = "invalid"
)

// Result is the outcome of one action request. On a committed apply,
// State is the new snapshot and Messages holds the chat-visible
// effects in order. Dry runs and rejections publish neither.
type Result struct {
	Applied  bool
	Problem  Problem
	State    *state.GlobalState
	Messages []item.ChatDescriptor
}

// Options control one Apply call.
type Options struct {
	// DryRun previews legality: same authorization and validation
	// decisions, but no new state is published and no message queued.
	DryRun bool
}

// Engine applies appearance actions against global state snapshots.
// It holds no state of its own apart from policy and logging; every
// Apply call re-derives restrictions from the given snapshot.
type Engine struct {
	roles  *restriction.Roles
	logger *slog.Logger
}

// NewEngine builds an engine evaluating permissions against roles.
func NewEngine(roles *restriction.Roles, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{roles: roles, logger: logger}
}

// Apply runs one action through resolve, authorize, mutate, validate,
// commit. Either a fully valid new snapshot is returned or nothing
// changes; partial effects are never observable. Panics only on an
// action kind that the decoder can never produce.
func (e *Engine) Apply(ctx context.Context, g *state.GlobalState, actor state.CharacterID, act Action, opts Options) Result {
	_, span := tracer.Start(ctx, "action.apply",
		trace.WithAttributes(
			attribute.String("action.type", string(act.Kind())),
			attribute.String("character.id", string(actor)),
			attribute.Bool("action.dry_run", opts.DryRun),
		),
	)
	defer span.End()

	res := e.apply(g, actor, act, opts)

	outcome := OutcomeApplied
	if !res.Applied {
		switch res.Problem {
		case ProblemPermission:
			outcome = OutcomePermission
		case ProblemNotFound:
			outcome = OutcomeNotFound
		default:
			outcome = OutcomeInvalid
		}
		e.logger.Debug("action rejected",
			"type", string(act.Kind()),
			"character", string(actor),
			"problem", string(res.Problem))
	}
	if !opts.DryRun {
		recordAction(act.Kind(), outcome)
	}
	span.SetAttributes(attribute.String("action.outcome", outcome))
	return res
}

func (e *Engine) apply(g *state.GlobalState, actor state.CharacterID, act Action, opts Options) Result {
	player := restriction.ManagerFor(g, actor, e.roles)
	if player == nil {
		return rejected(ProblemNotFound)
	}

	switch a := act.(type) {
	case Create:
		return e.applyCreate(g, player, a, opts)
	case Delete:
		return e.applyDelete(g, player, a, opts)
	case Move:
		return e.applyMove(g, player, a, opts)
	case Color:
		return e.applyColor(g, player, a, opts)
	case ModuleAction:
		return e.applyModuleAction(g, player, a, opts)
	case Pose:
		return e.applyPose(g, a, opts)
	case Body:
		return e.applyBody(g, actor, a, opts)
	case SetView:
		return e.applySetView(g, a, opts)
	default:
		panic(fmt.Sprintf("unhandled action kind %q", act.Kind()))
	}
}

func rejected(p Problem) Result {
	return Result{Problem: p}
}

func (e *Engine) applyCreate(g *state.GlobalState, player *restriction.Manager, a Create, opts Options) Result {
	asset := g.Assets().GetAssetByID(a.Asset)
	if asset == nil {
		return rejected(ProblemNotFound)
	}
	items, ok := g.Items(a.Target)
	if !ok {
		return rejected(ProblemNotFound)
	}
	it := item.New(a.ItemID, asset)
	if !player.CanUseItemDirect(a.Target, a.Container, it, restriction.InteractionAddRemove) {
		return rejected(ProblemPermission)
	}

	root := newRoot(g, a.Target, items)
	if !addItem(root, a.Container, it) {
		return rejected(ProblemInvalid)
	}
	return commit(g, a.Target, root, opts)
}

func (e *Engine) applyDelete(g *state.GlobalState, player *restriction.Manager, a Delete, opts Options) Result {
	items, ok := g.Items(a.Target)
	if !ok {
		return rejected(ProblemNotFound)
	}
	if _, ok := item.FindItem(items, a.Item); !ok {
		return rejected(ProblemNotFound)
	}
	if !player.CanUseItem(a.Target, a.Item, restriction.InteractionAddRemove) {
		return rejected(ProblemPermission)
	}

	root := newRoot(g, a.Target, items)
	if !removeItem(root, a.Item) {
		return rejected(ProblemInvalid)
	}
	return commit(g, a.Target, root, opts)
}

func (e *Engine) applyMove(g *state.GlobalState, player *restriction.Manager, a Move, opts Options) Result {
	items, ok := g.Items(a.Target)
	if !ok {
		return rejected(ProblemNotFound)
	}
	if _, ok := item.FindItem(items, a.Item); !ok {
		return rejected(ProblemNotFound)
	}
	if !player.CanUseItem(a.Target, a.Item, restriction.InteractionAddRemove) {
		return rejected(ProblemPermission)
	}

	root := newRoot(g, a.Target, items)
	man, ok := root.GetContainer(a.Item.Container)
	if !ok || !man.MoveItem(a.Item.Item, a.Shift) {
		return rejected(ProblemInvalid)
	}
	// Reordering is not chat-announced.
	return commit(g, a.Target, root, opts)
}

func (e *Engine) applyColor(g *state.GlobalState, player *restriction.Manager, a Color, opts Options) Result {
	items, ok := g.Items(a.Target)
	if !ok {
		return rejected(ProblemNotFound)
	}
	if _, ok := item.FindItem(items, a.Item); !ok {
		return rejected(ProblemNotFound)
	}
	if !player.CanUseItem(a.Target, a.Item, restriction.InteractionStyling) {
		return rejected(ProblemPermission)
	}

	root := newRoot(g, a.Target, items)
	man, ok := root.GetContainer(a.Item.Container)
	if !ok {
		return rejected(ProblemInvalid)
	}
	applied := man.ModifyItem(a.Item.Item, func(it *item.Item) (*item.Item, bool) {
		return it.WithColor(a.Color)
	})
	if !applied {
		return rejected(ProblemInvalid)
	}
	// Coloring is not chat-announced.
	return commit(g, a.Target, root, opts)
}

func (e *Engine) applyModuleAction(g *state.GlobalState, player *restriction.Manager, a ModuleAction, opts Options) Result {
	items, ok := g.Items(a.Target)
	if !ok {
		return rejected(ProblemNotFound)
	}
	if _, ok := item.FindItem(items, a.Item); !ok {
		return rejected(ProblemNotFound)
	}
	if !player.CanUseItemModule(a.Target, a.Item, a.Module) {
		return rejected(ProblemPermission)
	}

	root := newRoot(g, a.Target, items)
	man, ok := root.GetContainer(a.Item.Container)
	if !ok {
		return rejected(ProblemInvalid)
	}
	applied := man.ModifyItem(a.Item.Item, func(it *item.Item) (*item.Item, bool) {
		return it.ApplyModuleAction(a.Module, a.Action, man.QueueMessage)
	})
	if !applied {
		return rejected(ProblemInvalid)
	}
	return commit(g, a.Target, root, opts)
}

func (e *Engine) applyPose(g *state.GlobalState, a Pose, opts Options) Result {
	target := g.Character(a.Target)
	if target == nil {
		return rejected(ProblemNotFound)
	}
	patches := []pose.Partial{a.Pose}
	if a.Arms != nil {
		patches = append(patches, pose.Partial{Arms: a.Arms})
	}
	next := pose.Produce(target.Pose(), g.Assets().AllBones(),
		pose.ProduceOptions{BoneTypeFilter: pose.BoneTypePose}, patches...)
	return commitPose(g, a.Target, next, opts)
}

func (e *Engine) applyBody(g *state.GlobalState, actor state.CharacterID, a Body, opts Options) Result {
	// Body shape is the character's own.
	if actor != a.Target {
		return rejected(ProblemPermission)
	}
	target := g.Character(a.Target)
	if target == nil {
		return rejected(ProblemNotFound)
	}
	next := pose.Produce(target.Pose(), g.Assets().AllBones(),
		pose.ProduceOptions{BoneTypeFilter: pose.BoneTypeBody},
		pose.Partial{Bones: a.Bones})
	return commitPose(g, a.Target, next, opts)
}

func (e *Engine) applySetView(g *state.GlobalState, a SetView, opts Options) Result {
	target := g.Character(a.Target)
	if target == nil {
		return rejected(ProblemNotFound)
	}
	next := target.Pose()
	next.View = a.View
	return commitPose(g, a.Target, next, opts)
}

func newRoot(g *state.GlobalState, target state.TargetSelector, items []*item.Item) *item.RootManipulator {
	return item.NewRootManipulator(g.Assets(), items, target.Type == state.TargetCharacter)
}

// commit validates the working copy and publishes it as a sibling
// snapshot. Dry runs stop after validation.
func commit(g *state.GlobalState, target state.TargetSelector, root *item.RootManipulator, opts Options) Result {
	if err := root.Validate(); err != nil {
		return rejected(ProblemInvalid)
	}
	if opts.DryRun {
		return Result{Applied: true}
	}
	var out *state.GlobalState
	switch target.Type {
	case state.TargetCharacter:
		out, _ = g.WithCharacterItems(target.Character, root.Items())
	case state.TargetRoomInventory:
		out = g.WithRoomItems(root.Items())
	}
	return Result{Applied: true, State: out, Messages: root.QueuedMessages()}
}

func commitPose(g *state.GlobalState, id state.CharacterID, p pose.Pose, opts Options) Result {
	if opts.DryRun {
		return Result{Applied: true}
	}
	out, _ := g.WithCharacterPose(id, p)
	return Result{Applied: true, State: out}
}

// addItem adds the item to the container, swapping out an existing
// non-multiple bodypart of the same kind at a character root.
func addItem(root *item.RootManipulator, container item.ContainerPath, it *item.Item) bool {
	man, ok := root.GetContainer(container)
	if !ok {
		return false
	}

	var removed []*item.Item
	bp := it.Asset().Bodypart
	if man.IsCharacterRoot() && bp != "" {
		if def := root.Assets().Bodypart(bp); def != nil && !def.AllowMultiple {
			removed = man.RemoveMatchingItems(func(old *item.Item) bool {
				return old.Asset().Bodypart == bp
			})
		}
	}
	if !man.AddItem(it) {
		return false
	}

	if len(removed) > 0 {
		man.QueueMessage(item.ChatDescriptor{
			ID:            item.DescriptorItemReplace,
			Asset:         it.Asset().ID,
			PreviousAsset: removed[0].Asset().ID,
		})
		return true
	}
	man.QueueMessage(item.ChatDescriptor{
		ID:    addDescriptor(man.ContainerDefinition()),
		Asset: it.Asset().ID,
	})
	return true
}

// removeItem removes exactly the addressed item; removing zero or more
// than one fails the whole action.
func removeItem(root *item.RootManipulator, path item.Path) bool {
	man, ok := root.GetContainer(path.Container)
	if !ok {
		return false
	}
	removed := man.RemoveMatchingItems(func(it *item.Item) bool {
		return it.ID() == path.Item
	})
	if len(removed) != 1 {
		return false
	}
	man.QueueMessage(item.ChatDescriptor{
		ID:    removeDescriptor(man.ContainerDefinition()),
		Asset: removed[0].Asset().ID,
	})
	return true
}

// addDescriptor picks the chat wording for an add by where the item
// landed: worn at the root, attached to an equipped module, or stored.
func addDescriptor(container *assets.ModuleDefinition) item.DescriptorID {
	switch {
	case container == nil:
		return item.DescriptorItemAdd
	case container.Equipped:
		return item.DescriptorItemAttach
	default:
		return item.DescriptorItemStore
	}
}

func removeDescriptor(container *assets.ModuleDefinition) item.DescriptorID {
	switch {
	case container == nil:
		return item.DescriptorItemRemove
	case container.Equipped:
		return item.DescriptorItemDetach
	default:
		return item.DescriptorItemUnload
	}
}
