// Command giftctl is the operator CLI: bulk item import/export,
// projection reconciliation and development tokens.
package main

func main() {
	Execute()
}
