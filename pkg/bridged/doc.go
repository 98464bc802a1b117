// Package bridged coordinates the dual-instance state of a bridged soft
// AP session.
//
// The coordinator tracks which instances are alive and decides, for
// each runtime trigger (instance idle timeout, driver instance failure,
// coexistence change, concurrent STA channel change), whether to remove
// one instance or escalate to a full session stop. The removal
// candidate is always the higher-band instance; the 2.4 GHz instance is
// never removed while another instance exists. Losing the last
// remaining instance is the only condition that escalates.
package bridged
