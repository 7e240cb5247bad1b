package main

import (
	"log"

	"github.com/richinsley/cameratoy/settings"
)

// keyControls edits the panel from the keyboard. One numeric setting is
// selected at a time for stepping.
type keyControls struct {
	panel    *settings.Panel
	numeric  []string
	selected int
}

func newKeyControls(panel *settings.Panel) *keyControls {
	k := &keyControls{panel: panel}
	for _, s := range panel.Settings() {
		if s.Kind == settings.Numeric {
			k.numeric = append(k.numeric, s.Name)
		}
	}
	return k
}

// Selected returns the name of the selected numeric setting, or "" if the
// panel has none.
func (k *keyControls) Selected() string {
	if len(k.numeric) == 0 {
		return ""
	}
	return k.numeric[k.selected]
}

func (k *keyControls) Next() {
	if len(k.numeric) == 0 {
		return
	}
	k.selected = (k.selected + 1) % len(k.numeric)
	s := k.panel.Get(k.Selected())
	log.Printf("Selected %s = %s", s.Name, s.Text())
}

func (k *keyControls) Step(n int) {
	name := k.Selected()
	if name == "" {
		return
	}
	k.changed(k.panel.Step(name, n), name)
}

func (k *keyControls) Toggle(name string) {
	k.changed(k.panel.Toggle(name), name)
}

func (k *keyControls) Reset() {
	k.panel.Reset()
	k.panel.RequestSave()
	log.Printf("Settings reset: %s", k.panel.Summary())
}

func (k *keyControls) changed(err error, name string) {
	if err != nil {
		log.Printf("Cannot change %s: %v", name, err)
		return
	}
	k.panel.RequestSave()
	log.Printf("%s = %s", name, k.panel.Get(name).Text())
}
