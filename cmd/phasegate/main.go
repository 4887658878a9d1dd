// Command phasegate gates agent workflows behind validation runs and keeps
// recoverable checkpoints of uncommitted work.
package main

func main() {
	Execute()
}
