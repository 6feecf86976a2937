package simulation

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/bodysync/internal/core/events"
	"github.com/zeusync/bodysync/internal/core/observability/log"
	"github.com/zeusync/bodysync/internal/core/registry"
	"github.com/zeusync/bodysync/internal/core/template"
)

// StateOf projects every structure of id onto the protocol. Fields a body does not
// carry are omitted.
func (s *Simulation) StateOf(id EntityID) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateOf(id)
}

func (s *Simulation) stateOf(id EntityID) (Group, bool) {
	group, ok := s.reg.Get(id)
	if !ok {
		return nil, false
	}
	return s.project(group), true
}

// StateOfAll batches StateOf; absent ids are left out.
func (s *Simulation) StateOfAll(ids []EntityID) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateOfAll(ids)
}

func (s *Simulation) stateOfAll(ids []EntityID) State {
	state := make(State, len(ids))
	for _, id := range ids {
		if g, ok := s.stateOf(id); ok {
			state[id] = g
		}
	}
	return state
}

// State projects every live instance.
func (s *Simulation) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateOfAll(s.reg.Of(registry.Instances))
}

// Update applies rec to the default structure of id.
func (s *Simulation) Update(id EntityID, rec template.Record) error {
	return s.UpdateGroup(id, Group{template.DefaultName: rec})
}

// UpdateGroup merges the protocol fields of data over the current state of id and
// rebuilds the instance from its template. Non-protocol fields and structure names the
// template lacks are ignored; absent ids are a no-op. If the rebuild fails the instance
// is left as it was.
func (s *Simulation) UpdateGroup(id EntityID, data Group) error {
	s.mu.Lock()
	rebuilt, err := s.updateGroup(id, data)
	s.mu.Unlock()
	if rebuilt {
		s.publish(events.Rebuilt{ID: uint64(id)}.Event(eventSource))
	}
	return err
}

func (s *Simulation) updateGroup(id EntityID, data Group) (bool, error) {
	tpl, ok := s.reg.TemplateOf(id)
	if !ok {
		return false, nil
	}
	current, _ := s.stateOf(id)
	for _, layer := range []Group{current, data} {
		for name, rec := range layer {
			structure, ok := tpl.Structures[name]
			if !ok {
				continue
			}
			structure.Apply(s.unwrap(rec))
			tpl.Structures[name] = structure
		}
	}
	if err := s.reg.Rebuild(id, tpl); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAll applies UpdateGroup to every entry in ascending id order. Unknown ids are
// skipped. A failing entry does not stop the others; failures are joined.
func (s *Simulation) UpdateAll(state State) error {
	s.mu.Lock()
	rebuilt, err := s.updateAll(state)
	s.mu.Unlock()
	s.publish(rebuiltEvents(rebuilt)...)
	return err
}

func (s *Simulation) updateAll(state State) ([]EntityID, error) {
	var (
		rebuilt []EntityID
		all     error
	)
	for _, id := range state.IDs() {
		ok, err := s.updateGroup(id, state[id])
		if err != nil {
			all = errors.Join(all, err)
			continue
		}
		if ok {
			rebuilt = append(rebuilt, id)
		}
	}
	if all != nil {
		s.logger.Warn("state sync incomplete", log.Error(all))
	}
	return rebuilt, all
}

// Sync is UpdateAll.
func (s *Simulation) Sync(state State) error {
	return s.UpdateAll(state)
}

// WriteUpdate projects ids and passes the result through the write transform.
func (s *Simulation) WriteUpdate(ids []EntityID) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeUpdate(ids)
}

func (s *Simulation) writeUpdate(ids []EntityID) (State, error) {
	out, err := s.transforms.Write(s.stateOfAll(ids))
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "write: %v", err)
	}
	return out, nil
}

// ReadUpdate passes update through the read transform and syncs the result.
func (s *Simulation) ReadUpdate(update State) error {
	s.mu.Lock()
	rebuilt, err := s.readUpdate(update)
	s.mu.Unlock()
	s.publish(rebuiltEvents(rebuilt)...)
	return err
}

func (s *Simulation) readUpdate(update State) ([]EntityID, error) {
	state, err := s.transforms.Read(update)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "read: %v", err)
	}
	return s.updateAll(state)
}

// SerializeUpdate is WriteUpdate followed by the serialize transform.
func (s *Simulation) SerializeUpdate(ids []EntityID) ([]byte, error) {
	state, err := s.WriteUpdate(ids)
	if err != nil {
		return nil, err
	}
	raw, err := s.transforms.Serialize(state)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "serialize: %v", err)
	}
	return raw, nil
}

// Decode runs the receiving half of the pipeline without applying it: deserialize,
// then read. Replicas use it to remap ids before calling Sync.
func (s *Simulation) Decode(raw []byte) (State, error) {
	state, err := s.transforms.Deserialize(raw)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "deserialize: %v", err)
	}
	state, err = s.transforms.Read(state)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "read: %v", err)
	}
	return state, nil
}

// DeserializeUpdate decodes raw and syncs the result.
func (s *Simulation) DeserializeUpdate(raw []byte) error {
	state, err := s.Decode(raw)
	if err != nil {
		return err
	}
	return s.Sync(state)
}

// Quantize forces ids through a full write and read round trip under one lock. With
// lossless transforms it is idempotent; with lossy ones it snaps the instances onto the
// representation a peer receiving the same update ends up with.
func (s *Simulation) Quantize(ids []EntityID) error {
	s.mu.Lock()
	rebuilt, err := s.quantize(ids)
	s.mu.Unlock()
	s.publish(rebuiltEvents(rebuilt)...)
	return err
}

func (s *Simulation) quantize(ids []EntityID) ([]EntityID, error) {
	update, err := s.writeUpdate(ids)
	if err != nil {
		return nil, err
	}
	return s.readUpdate(update)
}

// QuantizeAndSerialize quantizes ids and serializes the same written state, so the
// bytes sent out describe exactly what the local copy now holds.
func (s *Simulation) QuantizeAndSerialize(ids []EntityID) ([]byte, error) {
	s.mu.Lock()
	update, err := s.writeUpdate(ids)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	rebuilt, err := s.readUpdate(update)
	s.mu.Unlock()

	s.publish(rebuiltEvents(rebuilt)...)
	if err != nil {
		return nil, err
	}
	raw, err := s.transforms.Serialize(update)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransform, "serialize: %v", err)
	}
	return raw, nil
}

// Digest hashes the written state of ids. Two copies that converged through Quantize
// report the same digest.
func (s *Simulation) Digest(ids []EntityID) (uint64, error) {
	state, err := s.WriteUpdate(ids)
	if err != nil {
		return 0, err
	}
	return s.checksum(state)
}
