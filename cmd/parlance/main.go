// Command parlance runs spoken dialogue flows on the console or as a server.
package main

func main() {
	Execute()
}
